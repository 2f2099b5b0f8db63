// Package gormdb carries gorm transactions through context so SQL repositories
// join a transaction opened by a caller.
package gormdb

import (
	"context"
	"fmt"
	"resledger/pkg/db"
	apperrors "resledger/pkg/errors"

	"gorm.io/gorm"
)

type txKey struct{}

type gormTransactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(conn *gorm.DB) db.TransactionManager {
	return &gormTransactionManager{db: conn}
}

func (m *gormTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// Conn returns the transaction bound to ctx, or conn scoped to ctx.
func Conn(ctx context.Context, conn *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return conn.WithContext(ctx)
}
