package repository

import "context"

// Transactor runs fn atomically. When ctx already carries a transaction,
// fn joins it and the outer owner decides on commit or rollback.
type Transactor interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}
