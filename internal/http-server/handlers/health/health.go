package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/membership-bot/internal/http-server/response"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

// CheckFunc проверка доступности зависимости.
type CheckFunc func(ctx context.Context) error

// New отвечает 200, если все проверки прошли, иначе 503 с описанием.
func New(log *slog.Logger, checks map[string]CheckFunc, timeout time.Duration) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.health.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		healthy := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Warn("health check failed", slog.String("check", name), sl.Err(err))
				results[name] = err.Error()
				healthy = false
				continue
			}
			results[name] = "ok"
		}

		if !healthy {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.WithChecks(response.Error("dependency unavailable"), results))
			return
		}
		render.JSON(w, r, response.WithChecks(response.OK(), results))
	}
}
