package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

// txStorage реализует storage.RecordTx поверх открытой транзакции.
type txStorage struct {
	tx dbtx
}

// RunInTx начинает транзакцию, выполняет fn и фиксирует её при успехе.
// При ошибке или панике транзакция откатывается, паника пробрасывается дальше.
func (s *Storage) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.RecordTx) error) (err error) {
	const op = "storage.RunInTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("%s: %w", op, commitErr)
		}
	}()

	return fn(ctx, &txStorage{tx: tx})
}
