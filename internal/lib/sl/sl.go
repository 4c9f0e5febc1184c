// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель: единообразные структурированные поля лога для ошибок
// и идентификаторов участников группы.
package sl

import (
	"io"
	"log/slog"
)

// New логгер процесса: в окружении local текстовый с уровнем Debug,
// в остальных JSON с уровнем Info.
func New(env string, w io.Writer) *slog.Logger {
	if env == "local" || env == "" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to approve payment", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// UserID возвращает slog.Attr с идентификатором пользователя платформы.
func UserID(id int64) slog.Attr {
	return slog.Int64("platform_id", id)
}
