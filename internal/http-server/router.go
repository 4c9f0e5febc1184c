// Package httpserver служебный HTTP-сервер: проверка готовности и метрики.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/membership-bot/internal/http-server/mware"
)

// NewRouter регистрирует /health и /metrics.
func NewRouter(log *slog.Logger, checks map[string]health.CheckFunc, gatherer prometheus.Gatherer, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		mware.Logger(log),
		middleware.Recoverer,
	)

	r.Get("/health", health.New(log, checks, timeout))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// New создаёт сервер с таймаутами из конфига.
func New(cfg config.HTTPServer, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      handler,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер.
func Run(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting on", slog.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down HTTP server gracefully")
		return srv.Shutdown(timeoutCtx)
	}
}
