// Package aggregation computes rollup sums over task subtrees.
package aggregation

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

type UseCase struct {
	tasks         repository.TaskRepository
	contributions repository.ContributionRepository
	tx            repository.Transactor
	logger        *zap.Logger
}

func New(
	tasks repository.TaskRepository,
	contributions repository.ContributionRepository,
	tx repository.Transactor,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:         tasks,
		contributions: contributions,
		tx:            tx,
		logger:        logger,
	}
}

// GetTaskSums rolls up the subtree of task, or the whole forest when task is
// nil. from and to bound the consumed part, inclusive and optional.
//
// When to is set, contributions logged after it are added back to TodoSum:
// seen from that day, they were still remaining work.
func (uc *UseCase) GetTaskSums(ctx context.Context, task *domain.Task, from, to *domain.Date) (domain.TaskSums, error) {
	var sums domain.TaskSums
	err := uc.tx.Within(ctx, func(ctx context.Context) error {
		var current *domain.Task
		if task != nil {
			var err error
			current, err = uc.tasks.GetByID(ctx, task.ID)
			if err != nil {
				return err
			}
		}

		amounts, err := uc.amounts(ctx, current)
		if err != nil {
			return err
		}
		sums.BudgetSum = amounts.Budget
		sums.InitiallyConsumedSum = amounts.InitiallyConsumed
		sums.TodoSum = amounts.Todo

		consumed, err := uc.contributions.Totals(ctx, repository.BuildContributionFilter(nil, current, from, to))
		if err != nil {
			return err
		}
		sums.ConsumedSum = consumed.Sum
		sums.ContributionsNb = consumed.Count

		if to != nil {
			later, err := uc.contributions.Totals(ctx, repository.BuildContributionFilter(nil, current, nil, nil).After(*to))
			if err != nil {
				return err
			}
			sums.TodoSum += later.Sum
		}
		return nil
	})
	if err != nil {
		return domain.TaskSums{}, err
	}
	return sums, nil
}

// GetTasksSums computes sums for several tasks; unknown ids are skipped.
func (uc *UseCase) GetTasksSums(ctx context.Context, ids []int64, from, to *domain.Date) (map[int64]domain.TaskSums, error) {
	out := make(map[int64]domain.TaskSums, len(ids))
	err := uc.tx.Within(ctx, func(ctx context.Context) error {
		tasks, err := uc.tasks.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for i := range tasks {
			sums, err := uc.GetTaskSums(ctx, &tasks[i], from, to)
			if err != nil {
				return err
			}
			out[tasks[i].ID] = sums
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetContributions lists individual contributions.
func (uc *UseCase) GetContributions(ctx context.Context, contributorID *int64, task *domain.Task, from, to *domain.Date) ([]domain.Contribution, error) {
	filter, err := uc.filter(ctx, contributorID, task, from, to)
	if err != nil {
		return nil, err
	}
	return uc.contributions.List(ctx, filter)
}

// GetContributionsSum sums contribution durations.
func (uc *UseCase) GetContributionsSum(ctx context.Context, contributorID *int64, task *domain.Task, from, to *domain.Date) (int64, error) {
	totals, err := uc.totals(ctx, contributorID, task, from, to)
	return totals.Sum, err
}

// GetContributionsCount counts contributions.
func (uc *UseCase) GetContributionsCount(ctx context.Context, contributorID *int64, task *domain.Task, from, to *domain.Date) (int64, error) {
	totals, err := uc.totals(ctx, contributorID, task, from, to)
	return totals.Count, err
}

func (uc *UseCase) totals(ctx context.Context, contributorID *int64, task *domain.Task, from, to *domain.Date) (domain.ContributionTotals, error) {
	filter, err := uc.filter(ctx, contributorID, task, from, to)
	if err != nil {
		return domain.ContributionTotals{}, err
	}
	return uc.contributions.Totals(ctx, filter)
}

// filter reloads task so the leaf/container decision uses stored state.
func (uc *UseCase) filter(ctx context.Context, contributorID *int64, task *domain.Task, from, to *domain.Date) (repository.ContributionFilter, error) {
	if task == nil {
		return repository.BuildContributionFilter(contributorID, nil, from, to), nil
	}
	current, err := uc.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return repository.ContributionFilter{}, err
	}
	return repository.BuildContributionFilter(contributorID, current, from, to), nil
}

func (uc *UseCase) amounts(ctx context.Context, task *domain.Task) (domain.Amounts, error) {
	if task == nil {
		return uc.tasks.SumLeafAmounts(ctx, nil)
	}
	if own, ok := task.OwnAmounts(); ok {
		return own, nil
	}
	return uc.tasks.SumLeafAmounts(ctx, task.FullPath())
}
