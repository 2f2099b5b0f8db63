// Package db holds the store-neutral transaction contract shared by the Mongo
// and SQL backends.
package db

import "context"

// TransactionFunc runs inside a transaction. Repositories called with the
// given ctx participate in it.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type noopTransactionManager struct{}

// NewNoopTransactionManager runs fn directly, for stores or tests without
// transaction support.
func NewNoopTransactionManager() TransactionManager {
	return noopTransactionManager{}
}

func (noopTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
