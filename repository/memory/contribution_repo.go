package memory

import (
	"context"
	"sort"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

type contributionRepository struct {
	s *Store
}

var _ repository.ContributionRepository = (*contributionRepository)(nil)

func (r *contributionRepository) Get(ctx context.Context, key domain.ContributionKey) (*domain.Contribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.contributions[key]
	if !ok {
		return nil, domain.ErrContributionNotFound
	}
	return &c, nil
}

func (r *contributionRepository) List(ctx context.Context, filter repository.ContributionFilter) ([]domain.Contribution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(filter)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.ContributorID != b.ContributorID {
			return a.ContributorID < b.ContributorID
		}
		return a.TaskID < b.TaskID
	})
	return out, nil
}

func (r *contributionRepository) Totals(ctx context.Context, filter repository.ContributionFilter) (domain.ContributionTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var totals domain.ContributionTotals
	for _, c := range r.matching(filter) {
		totals.Sum += c.DurationID
		totals.Count++
	}
	return totals, nil
}

func (r *contributionRepository) Create(ctx context.Context, contribution *domain.Contribution) error {
	if contribution == nil {
		return domain.ErrInvalidPayload
	}
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.contributions[contribution.ContributionKey]; exists {
		return domain.NewError(domain.ErrCodeConflict, "contribution already exists")
	}
	if err := r.s.write(); err != nil {
		return err
	}
	r.s.data.contributions[contribution.ContributionKey] = *contribution
	return nil
}

func (r *contributionRepository) Update(ctx context.Context, contribution *domain.Contribution) error {
	if contribution == nil {
		return domain.ErrInvalidPayload
	}
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.contributions[contribution.ContributionKey]; !exists {
		return domain.ErrContributionNotFound
	}
	if err := r.s.write(); err != nil {
		return err
	}
	r.s.data.contributions[contribution.ContributionKey] = *contribution
	return nil
}

func (r *contributionRepository) Delete(ctx context.Context, key domain.ContributionKey) error {
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.contributions[key]; !exists {
		return domain.ErrContributionNotFound
	}
	if err := r.s.write(); err != nil {
		return err
	}
	delete(r.s.data.contributions, key)
	return nil
}

func (r *contributionRepository) DeleteByTaskIDs(ctx context.Context, taskIDs []int64) (int64, error) {
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for _, chunk := range repository.Chunk(taskIDs, repository.BatchSize) {
		r.s.queries++
		if err := r.s.write(); err != nil {
			return removed, err
		}
		ids := make(map[int64]struct{}, len(chunk))
		for _, id := range chunk {
			ids[id] = struct{}{}
		}
		for key := range r.s.data.contributions {
			if _, ok := ids[key.TaskID]; ok {
				delete(r.s.data.contributions, key)
				removed++
			}
		}
	}
	return removed, nil
}

// matching must be called with mu held.
func (r *contributionRepository) matching(filter repository.ContributionFilter) []domain.Contribution {
	var out []domain.Contribution
	for _, c := range r.s.data.contributions {
		var full domain.Path
		if t, ok := r.s.data.tasks[c.TaskID]; ok {
			full = t.FullPath()
		}
		if filter.Matches(c, full) {
			out = append(out, c)
		}
	}
	return out
}

type durationRepository struct {
	s *Store
}

var _ repository.DurationRepository = (*durationRepository)(nil)

func (r *durationRepository) Get(ctx context.Context, id int64) (*domain.Duration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.data.durations[id]
	if !ok {
		return nil, domain.ErrDurationNotFound
	}
	return &d, nil
}

func (r *durationRepository) List(ctx context.Context, activeOnly bool) ([]domain.Duration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Duration
	for _, d := range r.s.data.durations {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *durationRepository) Upsert(ctx context.Context, duration *domain.Duration) error {
	if duration == nil {
		return domain.ErrInvalidPayload
	}
	defer r.s.lockWrites(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.write(); err != nil {
		return err
	}
	r.s.data.durations[duration.ID] = *duration
	return nil
}
