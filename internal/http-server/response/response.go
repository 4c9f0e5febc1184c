// Package response общий формат JSON-ответов служебного HTTP-сервера.
package response

// Response тело ответа.
type Response struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// WithChecks результат проверок зависимостей: имя -> "ok" или текст ошибки.
func WithChecks(r Response, checks map[string]string) Response {
	r.Checks = checks
	return r
}
