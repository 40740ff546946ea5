package repository

import (
	"context"

	"github.com/fastygo/timesheet/domain"
)

// TaskRepository is the persistence port of the task tree. Every method runs
// inside the transaction carried by ctx when the Transactor opened one.
//
// Returned tasks always carry SubTasksCount. Lookups that find nothing return
// domain.ErrTaskNotFound.
type TaskRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	GetByNumber(ctx context.Context, path domain.Path, number int) (*domain.Task, error)
	GetByCode(ctx context.Context, path domain.Path, code string) (*domain.Task, error)
	// GetByIDs fetches in batches of at most BatchSize ids per query.
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Task, error)
	// ListChildren returns the direct children of path ordered by number.
	ListChildren(ctx context.Context, path domain.Path) ([]domain.Task, error)
	// ListDescendants returns every task whose path starts with prefix,
	// ordered by path then number. A nil prefix lists the whole forest.
	ListDescendants(ctx context.Context, prefix domain.Path) ([]domain.Task, error)
	// MaxNumber returns the highest sibling number under path; ok is false
	// when path has no children.
	MaxNumber(ctx context.Context, path domain.Path) (max int, ok bool, err error)
	// SumLeafAmounts sums the own amounts of leaf tasks under prefix
	// (every leaf when prefix is nil).
	SumLeafAmounts(ctx context.Context, prefix domain.Path) (domain.Amounts, error)

	// Create assigns ID and Version.
	Create(ctx context.Context, task *domain.Task) error
	// Update persists path, number and fields when task.Version matches the
	// stored version, then bumps task.Version. A mismatch is domain.ErrConflict.
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id int64) error
}
