package usecase

import (
	"context"

	"github.com/fastygo/timesheet/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferContribution(ctx context.Context, operation string, contribution *domain.Contribution) error
}

// SumsInvalidator drops cached rollups affected by a change on task.
type SumsInvalidator interface {
	InvalidateTask(ctx context.Context, task *domain.Task) error
}
