package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/txn"
	"gorm.io/gorm"
)

type txKey struct{}

// TxManager implements txn.Manager on a gorm transaction carried in the context.
type TxManager struct {
	DB *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{DB: db}
}

func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	scopedCtx, scope := txn.Begin(ctx)
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(scopedCtx, txKey{}, tx))
	})
	if err != nil {
		scope.Discard()
		return err
	}
	scope.Committed()
	return nil
}

// Conn returns the transaction bound to ctx, or db scoped to ctx outside one.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// TranslateError maps gorm errors onto the domain sentinels.
func TranslateError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", what, err)
}
