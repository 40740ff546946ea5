package aggregation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

// Cached serves GetTaskSums through a SumsCache. Cache failures degrade to
// a direct computation.
//
// Sums of a subtree only depend on its content, so a change to a task's
// amounts or contributions invalidates that task, its ancestors and the
// forest entry; moving a subtree invalidates the old and the new chain.
type Cached struct {
	*UseCase
	cache  repository.SumsCache
	logger *zap.Logger
}

func NewCached(engine *UseCase, cache repository.SumsCache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{UseCase: engine, cache: cache, logger: logger}
}

func (c *Cached) GetTaskSums(ctx context.Context, task *domain.Task, from, to *domain.Date) (domain.TaskSums, error) {
	if c.cache == nil {
		return c.UseCase.GetTaskSums(ctx, task, from, to)
	}

	key := repository.ForestKey
	if task != nil {
		key = task.ID
	}
	variant := variantOf(from, to)

	sums, ok, err := c.cache.Get(ctx, key, variant)
	if err != nil {
		c.logger.Warn("sums cache read failed", zap.Int64("task_id", key), zap.Error(err))
	}
	if ok {
		return sums, nil
	}

	sums, err = c.UseCase.GetTaskSums(ctx, task, from, to)
	if err != nil {
		return domain.TaskSums{}, err
	}
	if err := c.cache.Set(ctx, key, variant, sums); err != nil {
		c.logger.Warn("sums cache write failed", zap.Int64("task_id", key), zap.Error(err))
	}
	return sums, nil
}

// InvalidatePath drops the cached sums of the task at fullPath, of each of
// its ancestors and of the forest.
func (c *Cached) InvalidatePath(ctx context.Context, fullPath domain.Path) error {
	if c.cache == nil {
		return nil
	}
	ids := []int64{repository.ForestKey}
	chain := append(fullPath.Ancestors(), fullPath)
	for _, p := range chain {
		parent, number, ok := p.Parent()
		if !ok {
			continue
		}
		t, err := c.tasks.GetByNumber(ctx, parent, number)
		if errors.Is(err, domain.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		ids = append(ids, t.ID)
	}
	return c.cache.Invalidate(ctx, ids...)
}

// InvalidateTask is InvalidatePath on the task's current full path, plus
// the task id itself in case it no longer exists.
func (c *Cached) InvalidateTask(ctx context.Context, task *domain.Task) error {
	if c.cache == nil || task == nil {
		return nil
	}
	if err := c.cache.Invalidate(ctx, task.ID); err != nil {
		return err
	}
	return c.InvalidatePath(ctx, task.FullPath())
}

func variantOf(from, to *domain.Date) string {
	var f, t string
	if from != nil {
		f = from.String()
	}
	if to != nil {
		t = to.String()
	}
	return f + "|" + t
}
