package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository/memory"
	"github.com/fastygo/timesheet/usecase/tasktree"
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	tree  *tasktree.UseCase
	sums  *UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		ctx:   context.Background(),
		store: store,
		tree:  tasktree.New(store.Tasks(), store.Contributions(), store, nil),
		sums:  New(store.Tasks(), store.Contributions(), store, nil),
	}
}

func (f *fixture) create(t *testing.T, parent *domain.Task, code string, amounts domain.Amounts) *domain.Task {
	t.Helper()
	task, err := f.tree.CreateTask(f.ctx, parent, &domain.Task{Code: code, Name: code, Amounts: amounts})
	require.NoError(t, err)
	return task
}

func (f *fixture) log(t *testing.T, task *domain.Task, contributor int64, day int, duration int64) {
	t.Helper()
	require.NoError(t, f.store.Contributions().Create(f.ctx, &domain.Contribution{
		ContributionKey: domain.ContributionKey{
			Date:          jan(day),
			ContributorID: contributor,
			TaskID:        task.ID,
		},
		DurationID: duration,
	}))
}

func jan(day int) domain.Date {
	return domain.Date{Year: 2024, Month: time.January, Day: day}
}

func datePtr(d domain.Date) *domain.Date { return &d }

func TestGetTaskSums_RollsUpLeafAmounts(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil, "A", domain.Amounts{})
	b := f.create(t, a, "B", domain.Amounts{Budget: 50, InitiallyConsumed: 5, Todo: 20})
	c := f.create(t, a, "C", domain.Amounts{Budget: 70, Todo: 10})
	f.log(t, b, 1, 2, 25)
	f.log(t, c, 1, 3, 50)
	f.log(t, c, 2, 3, 75)

	got, err := f.sums.GetTaskSums(f.ctx, a, nil, nil)
	require.NoError(t, err)
	want := domain.TaskSums{
		BudgetSum:            120,
		InitiallyConsumedSum: 5,
		TodoSum:              30,
		ConsumedSum:          150,
		ContributionsNb:      3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("container sums mismatch (-want +got):\n%s", diff)
	}

	leaf, err := f.sums.GetTaskSums(f.ctx, b, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), leaf.BudgetSum)
	assert.Equal(t, int64(25), leaf.ConsumedSum)
	assert.Equal(t, int64(1), leaf.ContributionsNb)

	forest, err := f.sums.GetTaskSums(f.ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, got, forest)
}

func TestGetTaskSums_ContainerIgnoresStaleOwnAmounts(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil, "A", domain.Amounts{Budget: 40})
	f.create(t, a, "B", domain.Amounts{Budget: 50})
	f.create(t, a, "C", domain.Amounts{Budget: 70})

	got, err := f.sums.GetTaskSums(f.ctx, a, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.BudgetSum)
}

func TestGetTaskSums_TodoIncludesWorkLoggedAfterTo(t *testing.T) {
	f := newFixture(t)
	leaf := f.create(t, nil, "T", domain.Amounts{Todo: 100})
	f.log(t, leaf, 1, 5, 20)
	f.log(t, leaf, 1, 12, 30)

	got, err := f.sums.GetTaskSums(f.ctx, leaf, nil, datePtr(jan(10)))
	require.NoError(t, err)
	assert.Equal(t, int64(130), got.TodoSum)
	assert.Equal(t, int64(20), got.ConsumedSum)
	assert.Equal(t, int64(1), got.ContributionsNb)

	open, err := f.sums.GetTaskSums(f.ctx, leaf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), open.TodoSum)
	assert.Equal(t, int64(50), open.ConsumedSum)

	from, err := f.sums.GetTaskSums(f.ctx, leaf, datePtr(jan(6)), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), from.TodoSum)
	assert.Equal(t, int64(30), from.ConsumedSum)
}

func TestGetContributions_SingleDayRange(t *testing.T) {
	f := newFixture(t)
	leaf := f.create(t, nil, "T", domain.Amounts{})
	f.log(t, leaf, 1, 4, 10)
	f.log(t, leaf, 1, 5, 20)
	f.log(t, leaf, 2, 5, 30)
	f.log(t, leaf, 1, 6, 40)

	day := jan(5)
	got, err := f.sums.GetContributions(f.ctx, nil, leaf, &day, &day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, day, c.Date)
	}

	sum, err := f.sums.GetContributionsSum(f.ctx, nil, leaf, &day, &day)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sum)

	contributor := int64(1)
	count, err := f.sums.GetContributionsCount(f.ctx, &contributor, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGetContributions_SubtreeOfContainer(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil, "A", domain.Amounts{})
	a1 := f.create(t, a, "A1", domain.Amounts{})
	a11 := f.create(t, a1, "A11", domain.Amounts{})
	a2 := f.create(t, a, "A2", domain.Amounts{})
	other := f.create(t, nil, "B", domain.Amounts{})
	f.log(t, a11, 1, 1, 10)
	f.log(t, a2, 1, 1, 20)
	f.log(t, other, 1, 1, 40)

	sum, err := f.sums.GetContributionsSum(f.ctx, nil, a, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), sum)

	sum, err = f.sums.GetContributionsSum(f.ctx, nil, a1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum)

	// a stale leaf copy must not narrow the filter to the task itself
	staleA := *a
	staleA.SubTasksCount = 0
	sum, err = f.sums.GetContributionsSum(f.ctx, nil, &staleA, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30), sum)
}

func TestGetTasksSums_SkipsUnknownIDs(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil, "A", domain.Amounts{Budget: 10})
	b := f.create(t, nil, "B", domain.Amounts{Budget: 20})

	got, err := f.sums.GetTasksSums(f.ctx, []int64{a.ID, b.ID, 999}, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[a.ID].BudgetSum)
	assert.Equal(t, int64(20), got[b.ID].BudgetSum)
}

func TestCached_ServesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	cache := memory.NewSumsCache()
	cached := NewCached(f.sums, cache, nil)

	a := f.create(t, nil, "A", domain.Amounts{})
	b := f.create(t, a, "B", domain.Amounts{Budget: 50})
	f.create(t, a, "C", domain.Amounts{Budget: 70})
	d := f.create(t, nil, "D", domain.Amounts{Budget: 5})

	for _, task := range []*domain.Task{a, b, d, nil} {
		_, err := cached.GetTaskSums(f.ctx, task, nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, cache.Len())

	f.log(t, b, 1, 1, 25)
	stale, err := cached.GetTaskSums(f.ctx, b, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stale.ConsumedSum)

	require.NoError(t, cached.InvalidateTask(f.ctx, b))
	// only D, outside the chain of B, is still cached
	assert.Equal(t, 1, cache.Len())

	fresh, err := cached.GetTaskSums(f.ctx, b, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(25), fresh.ConsumedSum)

	forest, err := cached.GetTaskSums(f.ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(125), forest.BudgetSum)
	assert.Equal(t, int64(25), forest.ConsumedSum)
}

func TestCached_VariantsAreIndependent(t *testing.T) {
	f := newFixture(t)
	cached := NewCached(f.sums, memory.NewSumsCache(), nil)
	leaf := f.create(t, nil, "T", domain.Amounts{Todo: 100})
	f.log(t, leaf, 1, 12, 30)

	open, err := cached.GetTaskSums(f.ctx, leaf, nil, nil)
	require.NoError(t, err)
	bounded, err := cached.GetTaskSums(f.ctx, leaf, nil, datePtr(jan(10)))
	require.NoError(t, err)

	assert.Equal(t, int64(100), open.TodoSum)
	assert.Equal(t, int64(130), bounded.TodoSum)
}

func TestCached_WithoutCacheComputesDirectly(t *testing.T) {
	f := newFixture(t)
	cached := NewCached(f.sums, nil, nil)
	leaf := f.create(t, nil, "T", domain.Amounts{Budget: 7})

	got, err := cached.GetTaskSums(f.ctx, leaf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.BudgetSum)
	assert.NoError(t, cached.InvalidateTask(f.ctx, leaf))
}
