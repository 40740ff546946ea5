package memory

import (
	"context"
	"sort"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

type taskRepository struct {
	s *Store
}

var _ repository.TaskRepository = (*taskRepository)(nil)

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.data.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return r.withCount(t), nil
}

func (r *taskRepository) GetByNumber(ctx context.Context, path domain.Path, number int) (*domain.Task, error) {
	return r.findOne(func(t domain.Task) bool {
		return t.Path.Equal(path) && t.Number == number
	})
}

func (r *taskRepository) GetByCode(ctx context.Context, path domain.Path, code string) (*domain.Task, error) {
	return r.findOne(func(t domain.Task) bool {
		return t.Path.Equal(path) && t.Code == code
	})
}

func (r *taskRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Task
	for _, chunk := range repository.Chunk(ids, repository.BatchSize) {
		r.s.queries++
		for _, id := range chunk {
			if t, ok := r.s.data.tasks[id]; ok {
				out = append(out, *r.withCount(t))
			}
		}
	}
	return out, nil
}

func (r *taskRepository) ListChildren(ctx context.Context, path domain.Path) ([]domain.Task, error) {
	return r.findAll(func(t domain.Task) bool { return t.Path.Equal(path) }), nil
}

func (r *taskRepository) ListDescendants(ctx context.Context, prefix domain.Path) ([]domain.Task, error) {
	return r.findAll(func(t domain.Task) bool { return t.Path.HasPrefix(prefix) }), nil
}

func (r *taskRepository) MaxNumber(ctx context.Context, path domain.Path) (int, bool, error) {
	children := r.findAll(func(t domain.Task) bool { return t.Path.Equal(path) })
	if len(children) == 0 {
		return 0, false, nil
	}
	return children[len(children)-1].Number, true, nil
}

func (r *taskRepository) SumLeafAmounts(ctx context.Context, prefix domain.Path) (domain.Amounts, error) {
	var sum domain.Amounts
	for _, t := range r.findAll(func(t domain.Task) bool { return t.Path.HasPrefix(prefix) }) {
		if t.IsLeaf() {
			sum = sum.Add(t.Amounts)
		}
	}
	return sum, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	r.s.data.nextID++
	task.ID = r.s.data.nextID
	task.Version = 1
	task.SubTasksCount = 0
	stored := *task
	stored.Path = task.Path.Clone()
	r.s.data.tasks[task.ID] = stored
	return nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if current.Version != task.Version {
		return domain.ErrConflict
	}
	if err := r.s.write(); err != nil {
		return err
	}
	task.Version++
	stored := *task
	stored.Path = task.Path.Clone()
	r.s.data.tasks[task.ID] = stored
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	if err := r.s.write(); err != nil {
		return err
	}
	delete(r.s.data.tasks, id)
	return nil
}

func (r *taskRepository) findOne(match func(domain.Task) bool) (*domain.Task, error) {
	all := r.findAll(match)
	if len(all) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return &all[0], nil
}

// findAll returns matching tasks ordered by path then number.
func (r *taskRepository) findAll(match func(domain.Task) bool) []domain.Task {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Task
	for _, t := range r.s.data.tasks {
		if match(t) {
			out = append(out, *r.withCount(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Path.String(), out[j].Path.String()
		if a != b {
			return a < b
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// withCount must be called with mu held.
func (r *taskRepository) withCount(t domain.Task) *domain.Task {
	out := t
	out.Path = t.Path.Clone()
	full := t.FullPath()
	out.SubTasksCount = 0
	for _, other := range r.s.data.tasks {
		if other.Path.Equal(full) {
			out.SubTasksCount++
		}
	}
	return &out
}
