// Package tasktree maintains the ordered task tree: sibling numbering,
// materialized paths and the moves that rewrite them.
//
// Every mutation runs inside repository.Transactor.Within, so a failed
// intermediate write never leaves gaps among sibling numbers or descendants
// carrying a stale path prefix.
package tasktree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fastygo/timesheet/domain"
	appLogger "github.com/fastygo/timesheet/pkg/logger"
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

func (uc *UseCase) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return uc.tasks.GetByID(ctx, id)
}

// GetTasks bulk-loads tasks; unknown ids are skipped.
func (uc *UseCase) GetTasks(ctx context.Context, ids []int64) ([]domain.Task, error) {
	return uc.tasks.GetByIDs(ctx, ids)
}

// GetTaskByCodePath resolves a slash separated chain of codes, root first.
func (uc *UseCase) GetTaskByCodePath(ctx context.Context, codePath string) (*domain.Task, error) {
	codes := strings.Split(strings.Trim(codePath, "/"), "/")
	var (
		path domain.Path
		task *domain.Task
	)
	for _, code := range codes {
		if code == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "empty code in path "+codePath)
		}
		found, err := uc.tasks.GetByCode(ctx, path, code)
		if err != nil {
			return nil, err
		}
		task = found
		path = found.FullPath()
	}
	return task, nil
}

// ListSubTasks returns the children of parent ordered by number; a nil
// parent lists the root tasks.
func (uc *UseCase) ListSubTasks(ctx context.Context, parent *domain.Task) ([]domain.Task, error) {
	var path domain.Path
	if parent != nil {
		path = parent.FullPath()
	}
	return uc.tasks.ListChildren(ctx, path)
}

// GetParent returns nil for a root task.
func (uc *UseCase) GetParent(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	parentPath, number, ok := task.Path.Parent()
	if !ok {
		return nil, nil
	}
	return uc.tasks.GetByNumber(ctx, parentPath, number)
}

// CreateTask inserts draft as the last child of parent (or as the last root
// when parent is nil) and returns the stored task.
func (uc *UseCase) CreateTask(ctx context.Context, parent *domain.Task, draft *domain.Task) (*domain.Task, error) {
	if draft == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := checkFields(draft); err != nil {
		return nil, err
	}

	var created *domain.Task
	err := uc.tx.Within(ctx, func(ctx context.Context) error {
		var (
			path     domain.Path
			current  *domain.Task
			wasEmpty bool
		)
		if parent != nil {
			var err error
			current, err = uc.reload(ctx, parent)
			if err != nil {
				return err
			}
			if err := uc.checkAcceptsSubtasks(ctx, current); err != nil {
				return err
			}
			path = current.FullPath()
			wasEmpty = current.IsLeaf()
		}

		if err := uc.checkCodeAvailable(ctx, path, draft.Code, 0); err != nil {
			return err
		}
		number, err := uc.allocateNextNumber(ctx, path)
		if err != nil {
			return err
		}

		task := draft.Clone()
		task.ID = 0
		task.Path = path
		task.Number = number
		if err := uc.tasks.Create(ctx, task); err != nil {
			return err
		}

		if wasEmpty {
			if err := uc.becomeContainer(ctx, current); err != nil {
				return err
			}
		}

		appLogger.FromContext(ctx, uc.logger).Debug("task created",
			zap.Int64("task_id", task.ID),
			zap.String("full_path", task.FullPath().String()))

		created = task
		if parent != nil {
			return uc.refresh(ctx, parent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTask persists code, name, comment and, for leaves, amounts.
// Path and number are only changed through the move operations.
func (uc *UseCase) UpdateTask(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}
		if err := checkFields(task); err != nil {
			return err
		}
		if task.Code != current.Code {
			if err := uc.checkCodeAvailable(ctx, current.Path, task.Code, current.ID); err != nil {
				return err
			}
		}
		if !current.IsLeaf() && task.Amounts != current.Amounts {
			return domain.ModelViolation("amounts of task %s are derived from its subtasks", current.Code)
		}

		current.Code = task.Code
		current.Name = task.Name
		current.Comment = task.Comment
		current.Amounts = task.Amounts
		if err := uc.tasks.Update(ctx, current); err != nil {
			return err
		}
		*task = *current
		return nil
	})
}

// CheckAcceptsSubtasks fails when task is a leaf that already has
// contributions. A nil task (the forest root) always accepts subtasks.
func (uc *UseCase) CheckAcceptsSubtasks(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return nil
	}
	current, err := uc.reload(ctx, task)
	if err != nil {
		return err
	}
	return uc.checkAcceptsSubtasks(ctx, current)
}

func (uc *UseCase) checkAcceptsSubtasks(ctx context.Context, task *domain.Task) error {
	if !task.IsLeaf() {
		return nil
	}
	totals, err := uc.contributions.Totals(ctx, repository.BuildContributionFilter(nil, task, nil, nil))
	if err != nil {
		return err
	}
	if totals.Count > 0 {
		return domain.ModelViolation("leaf has contributions: task %s cannot receive subtasks", task.Code)
	}
	return nil
}

// allocateNextNumber returns one plus the highest sibling number under path.
func (uc *UseCase) allocateNextNumber(ctx context.Context, path domain.Path) (int, error) {
	max, ok, err := uc.tasks.MaxNumber(ctx, path)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	next := max + 1
	if next >= domain.MaxSiblings {
		return 0, domain.ModelViolation("a task cannot have more than %d subtasks", domain.MaxSiblings)
	}
	return next, nil
}

func (uc *UseCase) checkCodeAvailable(ctx context.Context, path domain.Path, code string, selfID int64) error {
	existing, err := uc.tasks.GetByCode(ctx, path, code)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return domain.ModelViolation("code %s is already used by a sibling task", code)
}

// becomeContainer drops the own amounts of a task that just received its
// first subtask; from now on its amounts are the sums of its leaves.
func (uc *UseCase) becomeContainer(ctx context.Context, task *domain.Task) error {
	if task.Amounts.IsZero() {
		return nil
	}
	task.Amounts = domain.Amounts{}
	return uc.tasks.Update(ctx, task)
}

// reload fetches the stored copy of task. A caller copy carrying a version
// must still match the stored one.
func (uc *UseCase) reload(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	current, err := uc.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if task.Version != 0 && task.Version != current.Version {
		return nil, domain.ErrConflict
	}
	return current, nil
}

// refresh overwrites the caller copy with the stored task.
func (uc *UseCase) refresh(ctx context.Context, task *domain.Task) error {
	current, err := uc.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return err
	}
	*task = *current
	return nil
}

// checkFields enforces the column widths of the tasks table.
func checkFields(task *domain.Task) error {
	if strings.TrimSpace(task.Code) == "" {
		return domain.NewError(domain.ErrCodeInvalid, "task code is required")
	}
	if utf8.RuneCountInString(task.Code) > domain.MaxCodeLength {
		return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("task code exceeds %d characters", domain.MaxCodeLength))
	}
	if utf8.RuneCountInString(task.Name) > domain.MaxNameLength {
		return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("task name exceeds %d characters", domain.MaxNameLength))
	}
	return nil
}
