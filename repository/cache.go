package repository

import (
	"context"

	"github.com/fastygo/timesheet/domain"
)

// ForestKey is the cache slot of whole-forest sums.
const ForestKey int64 = 0

// SumsCache stores computed sums per task and query variant. Get reports
// ok == false on a miss.
type SumsCache interface {
	Get(ctx context.Context, taskID int64, variant string) (domain.TaskSums, bool, error)
	Set(ctx context.Context, taskID int64, variant string, sums domain.TaskSums) error
	// Invalidate drops every variant cached for the given tasks.
	Invalidate(ctx context.Context, taskIDs ...int64) error
}
