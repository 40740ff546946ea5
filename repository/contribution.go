package repository

import (
	"context"

	"github.com/fastygo/timesheet/domain"
)

// ContributionRepository persists logged time.
type ContributionRepository interface {
	Get(ctx context.Context, key domain.ContributionKey) (*domain.Contribution, error)
	List(ctx context.Context, filter ContributionFilter) ([]domain.Contribution, error)
	// Totals sums durations and counts rows. It always yields one result;
	// a store returning no row reports domain.ErrEmptyResult.
	Totals(ctx context.Context, filter ContributionFilter) (domain.ContributionTotals, error)
	Create(ctx context.Context, contribution *domain.Contribution) error
	Update(ctx context.Context, contribution *domain.Contribution) error
	Delete(ctx context.Context, key domain.ContributionKey) error
	// DeleteByTaskIDs removes every contribution of the given tasks, batched
	// by BatchSize ids.
	DeleteByTaskIDs(ctx context.Context, taskIDs []int64) (int64, error)
}

// DurationRepository persists the duration catalog.
type DurationRepository interface {
	Get(ctx context.Context, id int64) (*domain.Duration, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Duration, error)
	Upsert(ctx context.Context, duration *domain.Duration) error
}
