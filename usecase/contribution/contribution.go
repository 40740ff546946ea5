package contribution

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/timesheet/domain"
	appLogger "github.com/fastygo/timesheet/pkg/logger"
	"github.com/fastygo/timesheet/repository"
	"github.com/fastygo/timesheet/usecase"
)

type UseCase struct {
	contributions repository.ContributionRepository
	durations     repository.DurationRepository
	tasks         repository.TaskRepository
	tx            repository.Transactor
	buffer        usecase.OperationBuffer
	sums          usecase.SumsInvalidator
	logger        *zap.Logger
}

func New(
	contributions repository.ContributionRepository,
	durations repository.DurationRepository,
	tasks repository.TaskRepository,
	tx repository.Transactor,
	buffer usecase.OperationBuffer,
	sums usecase.SumsInvalidator,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		contributions: contributions,
		durations:     durations,
		tasks:         tasks,
		tx:            tx,
		buffer:        buffer,
		sums:          sums,
		logger:        logger,
	}
}

func (uc *UseCase) GetContribution(ctx context.Context, key domain.ContributionKey) (*domain.Contribution, error) {
	return uc.contributions.Get(ctx, key)
}

func (uc *UseCase) CreateContribution(ctx context.Context, c *domain.Contribution) error {
	return uc.write(ctx, usecase.OperationCreate, c, uc.contributions.Create)
}

func (uc *UseCase) UpdateContribution(ctx context.Context, c *domain.Contribution) error {
	return uc.write(ctx, usecase.OperationUpdate, c, uc.contributions.Update)
}

func (uc *UseCase) DeleteContribution(ctx context.Context, key domain.ContributionKey) error {
	c := &domain.Contribution{ContributionKey: key}
	if err := uc.contributions.Delete(ctx, key); err != nil {
		if isDomain(err) {
			return err
		}
		if uc.shouldBuffer(ctx, usecase.OperationDelete, c) {
			return nil
		}
		return err
	}
	uc.invalidate(ctx, key.TaskID)
	return nil
}

// ReplayContribution applies a buffered write once the store answers again.
// The leaf and duration checks run against the current tree in the same
// transaction as the write, since the task may have gained subtasks while
// the write was buffered.
func (uc *UseCase) ReplayContribution(ctx context.Context, operation string, c *domain.Contribution) error {
	if c == nil {
		return domain.ErrInvalidPayload
	}
	err := uc.tx.Within(ctx, func(ctx context.Context) error {
		switch operation {
		case usecase.OperationCreate:
			if err := uc.validate(ctx, c); err != nil {
				return err
			}
			return uc.contributions.Create(ctx, c)
		case usecase.OperationUpdate:
			if err := uc.validate(ctx, c); err != nil {
				return err
			}
			return uc.contributions.Update(ctx, c)
		case usecase.OperationDelete:
			return uc.contributions.Delete(ctx, c.ContributionKey)
		default:
			return fmt.Errorf("unsupported operation %s", operation)
		}
	})
	if err != nil {
		return err
	}
	uc.invalidate(ctx, c.TaskID)
	return nil
}

func (uc *UseCase) ListDurations(ctx context.Context, activeOnly bool) ([]domain.Duration, error) {
	return uc.durations.List(ctx, activeOnly)
}

// CreateDuration registers a new, active catalog entry.
func (uc *UseCase) CreateDuration(ctx context.Context, id int64) (*domain.Duration, error) {
	if id <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "duration must be positive")
	}
	if _, err := uc.durations.Get(ctx, id); err == nil {
		return nil, domain.NewError(domain.ErrCodeConflict, "duration already exists")
	} else if !errors.Is(err, domain.ErrDurationNotFound) {
		return nil, err
	}
	d := &domain.Duration{ID: id, Active: true}
	if err := uc.durations.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetDurationActive toggles the only mutable field of a duration.
func (uc *UseCase) SetDurationActive(ctx context.Context, id int64, active bool) (*domain.Duration, error) {
	d, err := uc.durations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Active = active
	if err := uc.durations.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (uc *UseCase) write(
	ctx context.Context,
	operation string,
	c *domain.Contribution,
	persist func(context.Context, *domain.Contribution) error,
) error {
	if c == nil {
		return domain.ErrInvalidPayload
	}
	err := uc.validate(ctx, c)
	if err == nil {
		err = persist(ctx, c)
	}
	if err != nil {
		if isDomain(err) {
			return err
		}
		if uc.shouldBuffer(ctx, operation, c) {
			return nil
		}
		return err
	}
	uc.invalidate(ctx, c.TaskID)
	return nil
}

// validate checks that time goes to a leaf task with an active duration.
func (uc *UseCase) validate(ctx context.Context, c *domain.Contribution) error {
	if c.ContributorID <= 0 {
		return domain.NewError(domain.ErrCodeInvalid, "contributor is required")
	}
	task, err := uc.tasks.GetByID(ctx, c.TaskID)
	if err != nil {
		return err
	}
	if !task.IsLeaf() {
		return domain.ModelViolation("contributions can only be logged on leaf tasks, %s has subtasks", task.Code)
	}
	duration, err := uc.durations.Get(ctx, c.DurationID)
	if err != nil {
		return err
	}
	if !duration.Active {
		return domain.ModelViolation("duration %d is not active", duration.ID)
	}
	return nil
}

func (uc *UseCase) invalidate(ctx context.Context, taskID int64) {
	if uc.sums == nil {
		return
	}
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		appLogger.FromContext(ctx, uc.logger).Warn("cannot resolve task for sums invalidation", zap.Int64("task_id", taskID), zap.Error(err))
		return
	}
	if err := uc.sums.InvalidateTask(ctx, task); err != nil {
		appLogger.FromContext(ctx, uc.logger).Warn("sums invalidation failed", zap.Int64("task_id", taskID), zap.Error(err))
	}
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, c *domain.Contribution) bool {
	if uc.buffer == nil {
		return false
	}
	if err := uc.buffer.BufferContribution(ctx, operation, c); err != nil {
		appLogger.FromContext(ctx, uc.logger).Error("failed to buffer contribution operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	appLogger.FromContext(ctx, uc.logger).Warn("contribution operation buffered", zap.String("operation", operation))
	return true
}

func isDomain(err error) bool {
	var dErr *domain.Error
	return errors.As(err, &dErr)
}
