package services

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/internal/infrastructure/buffer"
	"github.com/fastygo/timesheet/repository/memory"
	"github.com/fastygo/timesheet/usecase"
	"github.com/fastygo/timesheet/usecase/aggregation"
	contributionUC "github.com/fastygo/timesheet/usecase/contribution"
	"github.com/fastygo/timesheet/usecase/tasktree"
)

type switchMonitor struct {
	online atomic.Bool
}

func (m *switchMonitor) IsOnline() bool { return m.online.Load() }

type processorFixture struct {
	ctx           context.Context
	store         *memory.Store
	buf           *buffer.Store
	monitor       *switchMonitor
	processor     *BufferProcessor
	bridge        *BufferBridge
	tree          *tasktree.UseCase
	sums          *aggregation.Cached
	contributions *contributionUC.UseCase
	leaf          *domain.Task
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	ctx := context.Background()
	buf, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "contributions")
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })

	store := memory.New()
	mon := &switchMonitor{}
	f := &processorFixture{
		ctx:     ctx,
		store:   store,
		buf:     buf,
		monitor: mon,
		tree:    tasktree.New(store.Tasks(), store.Contributions(), store, nil),
		sums: aggregation.NewCached(
			aggregation.New(store.Tasks(), store.Contributions(), store, nil),
			memory.NewSumsCache(),
			nil,
		),
	}
	f.processor = NewBufferProcessor(buf, mon, ReplayFunc(func(ctx context.Context, operation string, c *domain.Contribution) error {
		return f.contributions.ReplayContribution(ctx, operation, c)
	}), nil, ProcessorConfig{
		Interval:   time.Hour,
		MaxRetries: 2,
	})
	f.bridge = NewBufferBridge(f.processor)
	f.contributions = contributionUC.New(store.Contributions(), store.Durations(), store.Tasks(), store, f.bridge, f.sums, nil)

	f.leaf, err = f.tree.CreateTask(ctx, nil, &domain.Task{Code: "L", Name: "leaf", Amounts: domain.Amounts{Budget: 100}})
	require.NoError(t, err)
	for _, d := range []int64{25, 50} {
		_, err := f.contributions.CreateDuration(ctx, d)
		require.NoError(t, err)
	}
	return f
}

func (f *processorFixture) contributionOn(day int) *domain.Contribution {
	return &domain.Contribution{
		ContributionKey: domain.ContributionKey{
			Date:          domain.Date{Year: 2024, Month: time.May, Day: day},
			ContributorID: 3,
			TaskID:        f.leaf.ID,
		},
		DurationID: 25,
	}
}

func TestBufferProcessor_ReplaysWhenBackOnline(t *testing.T) {
	f := newProcessorFixture(t)

	c := f.contributionOn(1)
	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, c))
	c.DurationID = 50
	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationUpdate, c))
	assert.Equal(t, 2, f.processor.Size())

	require.NoError(t, f.processor.Drain(f.ctx))
	assert.Equal(t, 2, f.processor.Size(), "offline drain is a no-op")

	f.monitor.online.Store(true)
	require.NoError(t, f.processor.Drain(f.ctx))
	assert.Equal(t, 0, f.processor.Size())

	got, err := f.store.Contributions().Get(f.ctx, c.ContributionKey)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.DurationID, "update replayed after create")
}

func TestBufferProcessor_OnlineWritesThrough(t *testing.T) {
	f := newProcessorFixture(t)
	f.monitor.online.Store(true)

	c := f.contributionOn(2)
	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, c))
	assert.Equal(t, 0, f.processor.Size())

	_, err := f.store.Contributions().Get(f.ctx, c.ContributionKey)
	assert.NoError(t, err)
}

func TestBufferProcessor_DropsPermanentFailures(t *testing.T) {
	f := newProcessorFixture(t)
	c := f.contributionOn(3)
	require.NoError(t, f.store.Contributions().Create(f.ctx, c))

	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, c))
	require.Equal(t, 1, f.processor.Size())

	f.monitor.online.Store(true)
	require.NoError(t, f.processor.Drain(f.ctx))
	assert.Equal(t, 0, f.processor.Size(), "duplicate create is not retried")
}

func TestBufferProcessor_DropsWriteOnTaskThatGainedSubtasks(t *testing.T) {
	f := newProcessorFixture(t)

	// the store fails the write and the use case buffers it
	f.store.FailWritesAfter(0, memory.ErrInjected)
	c := f.contributionOn(6)
	require.NoError(t, f.contributions.CreateContribution(f.ctx, c))
	require.Equal(t, 1, f.processor.Size())

	_, err := f.tree.CreateTask(f.ctx, f.leaf, &domain.Task{Code: "C", Name: "child"})
	require.NoError(t, err)

	f.monitor.online.Store(true)
	require.NoError(t, f.processor.Drain(f.ctx))
	assert.Equal(t, 0, f.processor.Size(), "model violations are dropped, not retried")

	_, err = f.store.Contributions().Get(f.ctx, c.ContributionKey)
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)

	container, err := f.sums.GetTaskSums(f.ctx, f.leaf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), container.ConsumedSum)
	forest, err := f.sums.GetTaskSums(f.ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), forest.ConsumedSum)
}

func TestBufferProcessor_ReplayRefreshesCachedSums(t *testing.T) {
	f := newProcessorFixture(t)

	before, err := f.sums.GetTaskSums(f.ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.ConsumedSum)

	f.store.FailWritesAfter(0, memory.ErrInjected)
	require.NoError(t, f.contributions.CreateContribution(f.ctx, f.contributionOn(7)))
	require.Equal(t, 1, f.processor.Size())

	f.monitor.online.Store(true)
	require.NoError(t, f.processor.Drain(f.ctx))
	require.Equal(t, 0, f.processor.Size())

	after, err := f.sums.GetTaskSums(f.ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(25), after.ConsumedSum)
	leaf, err := f.sums.GetTaskSums(f.ctx, f.leaf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(25), leaf.ConsumedSum)
}

func TestBufferProcessor_RetriesTransientFailures(t *testing.T) {
	f := newProcessorFixture(t)
	c := f.contributionOn(4)
	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, c))

	f.monitor.online.Store(true)
	f.store.FailWritesAfter(0, memory.ErrInjected)
	require.NoError(t, f.processor.Drain(f.ctx))

	items, err := f.buf.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)

	require.NoError(t, f.processor.Drain(f.ctx))
	assert.Equal(t, 0, f.processor.Size())
	_, err = f.store.Contributions().Get(f.ctx, c.ContributionKey)
	assert.NoError(t, err)
}

func TestBufferProcessor_GivesUpAfterMaxRetries(t *testing.T) {
	f := newProcessorFixture(t)
	c := f.contributionOn(5)
	require.NoError(t, f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, c))
	f.monitor.online.Store(true)

	for i := 0; i < 2; i++ {
		f.store.FailWritesAfter(0, memory.ErrInjected)
		require.NoError(t, f.processor.Drain(f.ctx))
	}
	assert.Equal(t, 0, f.processor.Size())
	_, err := f.store.Contributions().Get(f.ctx, c.ContributionKey)
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)
}

func TestBufferBridge_RejectsNil(t *testing.T) {
	f := newProcessorFixture(t)
	err := f.bridge.BufferContribution(f.ctx, usecase.OperationCreate, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
