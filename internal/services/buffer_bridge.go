package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/internal/infrastructure/buffer"
	"github.com/fastygo/timesheet/usecase"
)

type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

// BufferContribution queues a contribution write. All contribution items
// share one priority so they replay in the order they were issued.
func (b *BufferBridge) BufferContribution(ctx context.Context, operation string, c *domain.Contribution) error {
	if b.processor == nil || c == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ContributorID: c.ContributorID,
		Entity:        buffer.EntityContribution,
		Operation:     operation,
		Data:          payload,
		Priority:      3,
	}
	return b.processor.BufferOperation(ctx, item)
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
