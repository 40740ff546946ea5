package tasktree

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fastygo/timesheet/domain"
	appLogger "github.com/fastygo/timesheet/pkg/logger"
)

// relocation moves one task to (path, number) and rewrites the path prefix
// of its descendants. Descendants are captured before any write of the
// batch, so rewrites never pick up rows moved by a sibling relocation.
type relocation struct {
	task        *domain.Task
	path        domain.Path
	number      int
	descendants []domain.Task
}

func (uc *UseCase) plan(ctx context.Context, task *domain.Task, path domain.Path, number int) (relocation, error) {
	descendants, err := uc.tasks.ListDescendants(ctx, task.FullPath())
	if err != nil {
		return relocation{}, err
	}
	return relocation{task: task, path: path, number: number, descendants: descendants}, nil
}

func (uc *UseCase) apply(ctx context.Context, moves []relocation) error {
	for _, m := range moves {
		oldFull := m.task.FullPath()
		m.task.Path = m.path.Clone()
		m.task.Number = m.number
		newFull := m.task.FullPath()
		if err := uc.tasks.Update(ctx, m.task); err != nil {
			return err
		}
		for i := range m.descendants {
			d := &m.descendants[i]
			d.Path = d.Path.ReplacePrefix(oldFull, newFull)
			if err := uc.tasks.Update(ctx, d); err != nil {
				return err
			}
		}
		appLogger.FromContext(ctx, uc.logger).Debug("task relocated",
			zap.Int64("task_id", m.task.ID),
			zap.String("from", oldFull.String()),
			zap.String("to", newFull.String()),
			zap.Int("descendants", len(m.descendants)))
	}
	return nil
}

// MoveUp swaps task with its preceding sibling.
func (uc *UseCase) MoveUp(ctx context.Context, task *domain.Task) error {
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}
		if current.Number == 0 {
			return domain.ModelViolation("task %s is already the first one", current.Code)
		}
		if err := uc.moveToPosition(ctx, current, current.Number-1); err != nil {
			return err
		}
		return uc.refresh(ctx, task)
	})
}

// MoveDown swaps task with its following sibling.
func (uc *UseCase) MoveDown(ctx context.Context, task *domain.Task) error {
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}
		max, _, err := uc.tasks.MaxNumber(ctx, current.Path)
		if err != nil {
			return err
		}
		if current.Number >= max {
			return domain.ModelViolation("task %s is already the last one", current.Code)
		}
		if err := uc.moveToPosition(ctx, current, current.Number+1); err != nil {
			return err
		}
		return uc.refresh(ctx, task)
	})
}

// MoveToPosition gives task the sibling number newNumber, shifting the
// siblings in between by one so numbers stay contiguous.
func (uc *UseCase) MoveToPosition(ctx context.Context, task *domain.Task, newNumber int) error {
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}
		if err := uc.moveToPosition(ctx, current, newNumber); err != nil {
			return err
		}
		return uc.refresh(ctx, task)
	})
}

func (uc *UseCase) moveToPosition(ctx context.Context, task *domain.Task, newNumber int) error {
	siblings, err := uc.tasks.ListChildren(ctx, task.Path)
	if err != nil {
		return err
	}
	if newNumber < 0 || newNumber >= len(siblings) {
		return domain.ModelViolation("position %d is out of range [0, %d)", newNumber, len(siblings))
	}
	oldNumber := task.Number
	if newNumber == oldNumber {
		return nil
	}

	moves := make([]relocation, 0, len(siblings))
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.ID == task.ID {
			continue
		}
		shift := 0
		switch {
		case newNumber < oldNumber && sibling.Number >= newNumber && sibling.Number < oldNumber:
			shift = 1
		case newNumber > oldNumber && sibling.Number > oldNumber && sibling.Number <= newNumber:
			shift = -1
		}
		if shift == 0 {
			continue
		}
		m, err := uc.plan(ctx, sibling, task.Path, sibling.Number+shift)
		if err != nil {
			return err
		}
		moves = append(moves, m)
	}
	m, err := uc.plan(ctx, task, task.Path, newNumber)
	if err != nil {
		return err
	}
	moves = append(moves, m)
	return uc.apply(ctx, moves)
}

// MoveToParent appends task, with its subtree, to the children of newParent
// (the roots when newParent is nil). The siblings left behind are
// renumbered to close the gap.
func (uc *UseCase) MoveToParent(ctx context.Context, task *domain.Task, newParent *domain.Task) error {
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}

		var (
			dest     *domain.Task
			destPath domain.Path
		)
		if newParent != nil {
			dest, err = uc.reload(ctx, newParent)
			if err != nil {
				return err
			}
			if dest.FullPath().HasPrefix(current.FullPath()) {
				return domain.ModelViolation("task %s cannot be moved under itself or one of its subtasks", current.Code)
			}
			if err := uc.checkAcceptsSubtasks(ctx, dest); err != nil {
				return err
			}
			destPath = dest.FullPath()
		}
		if destPath.Equal(current.Path) {
			return domain.ModelViolation("task %s already belongs to this parent", current.Code)
		}
		if err := uc.checkCodeAvailable(ctx, destPath, current.Code, current.ID); err != nil {
			return err
		}

		number, err := uc.allocateNextNumber(ctx, destPath)
		if err != nil {
			return err
		}
		oldPath, oldNumber := current.Path.Clone(), current.Number

		m, err := uc.plan(ctx, current, destPath, number)
		if err != nil {
			return err
		}
		if err := uc.apply(ctx, []relocation{m}); err != nil {
			return err
		}
		if dest != nil && dest.IsLeaf() {
			if err := uc.becomeContainer(ctx, dest); err != nil {
				return err
			}
		}
		if err := uc.closeGap(ctx, oldPath, oldNumber); err != nil {
			return err
		}

		if err := uc.refresh(ctx, task); err != nil {
			return err
		}
		if newParent != nil {
			return uc.refresh(ctx, newParent)
		}
		return nil
	})
}

// RemoveTask deletes task, its whole subtree and every contribution logged
// on any of the removed tasks, then renumbers the following siblings.
func (uc *UseCase) RemoveTask(ctx context.Context, task *domain.Task) error {
	return uc.tx.Within(ctx, func(ctx context.Context) error {
		current, err := uc.reload(ctx, task)
		if err != nil {
			return err
		}
		descendants, err := uc.tasks.ListDescendants(ctx, current.FullPath())
		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(descendants)+1)
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}
		ids = append(ids, current.ID)

		removed, err := uc.contributions.DeleteByTaskIDs(ctx, ids)
		if err != nil {
			return err
		}

		// deepest first
		sort.SliceStable(descendants, func(i, j int) bool {
			return len(descendants[i].Path) > len(descendants[j].Path)
		})
		for _, d := range descendants {
			if err := uc.tasks.Delete(ctx, d.ID); err != nil {
				return err
			}
		}
		if err := uc.tasks.Delete(ctx, current.ID); err != nil {
			return err
		}

		appLogger.FromContext(ctx, uc.logger).Debug("task removed",
			zap.Int64("task_id", current.ID),
			zap.String("full_path", current.FullPath().String()),
			zap.Int("subtasks", len(descendants)),
			zap.Int64("contributions", removed))

		return uc.closeGap(ctx, current.Path, current.Number)
	})
}

// closeGap shifts down by one every child of path numbered above vacated.
func (uc *UseCase) closeGap(ctx context.Context, path domain.Path, vacated int) error {
	siblings, err := uc.tasks.ListChildren(ctx, path)
	if err != nil {
		return err
	}
	var moves []relocation
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.Number <= vacated {
			continue
		}
		m, err := uc.plan(ctx, sibling, path, sibling.Number-1)
		if err != nil {
			return err
		}
		moves = append(moves, m)
	}
	return uc.apply(ctx, moves)
}
