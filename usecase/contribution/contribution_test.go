package contribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository/memory"
	"github.com/fastygo/timesheet/usecase"
)

type bufferedOp struct {
	operation string
	key       domain.ContributionKey
}

type fakeBuffer struct {
	ops []bufferedOp
	err error
}

func (b *fakeBuffer) BufferContribution(ctx context.Context, operation string, c *domain.Contribution) error {
	if b.err != nil {
		return b.err
	}
	b.ops = append(b.ops, bufferedOp{operation: operation, key: c.ContributionKey})
	return nil
}

type fakeInvalidator struct {
	taskIDs []int64
}

func (i *fakeInvalidator) InvalidateTask(ctx context.Context, task *domain.Task) error {
	i.taskIDs = append(i.taskIDs, task.ID)
	return nil
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	buffer  *fakeBuffer
	sums    *fakeInvalidator
	uc      *UseCase
	leaf    *domain.Task
	parent  *domain.Task
	day     domain.Date
	minutes int64
}

func newFixture(t *testing.T, withBuffer bool) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	parent := &domain.Task{Code: "P", Name: "parent", SubTasksCount: 1}
	require.NoError(t, store.Tasks().Create(ctx, parent))
	leaf := &domain.Task{Code: "L", Name: "leaf", Path: parent.FullPath()}
	require.NoError(t, store.Tasks().Create(ctx, leaf))

	f := &fixture{
		ctx:     ctx,
		store:   store,
		buffer:  &fakeBuffer{},
		sums:    &fakeInvalidator{},
		leaf:    leaf,
		parent:  parent,
		day:     domain.Date{Year: 2024, Month: time.March, Day: 4},
		minutes: 50,
	}
	var buf usecase.OperationBuffer
	if withBuffer {
		buf = f.buffer
	}
	f.uc = New(store.Contributions(), store.Durations(), store.Tasks(), store, buf, f.sums, nil)

	_, err := f.uc.CreateDuration(ctx, f.minutes)
	require.NoError(t, err)
	return f
}

func (f *fixture) contribution(task *domain.Task) *domain.Contribution {
	return &domain.Contribution{
		ContributionKey: domain.ContributionKey{Date: f.day, ContributorID: 7, TaskID: task.ID},
		DurationID:      f.minutes,
	}
}

func TestCreateContribution_OnLeaf(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.uc.CreateContribution(f.ctx, f.contribution(f.leaf)))

	got, err := f.uc.GetContribution(f.ctx, f.contribution(f.leaf).ContributionKey)
	require.NoError(t, err)
	assert.Equal(t, f.minutes, got.DurationID)
	assert.Equal(t, []int64{f.leaf.ID}, f.sums.taskIDs)
	assert.Empty(t, f.buffer.ops)
}

func TestCreateContribution_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, c *domain.Contribution)
		code   domain.ErrorCode
	}{
		{
			name:   "container task",
			mutate: func(f *fixture, c *domain.Contribution) { c.TaskID = f.parent.ID },
			code:   domain.ErrCodeModelViolation,
		},
		{
			name: "inactive duration",
			mutate: func(f *fixture, c *domain.Contribution) {
				_, err := f.uc.SetDurationActive(f.ctx, f.minutes, false)
				if err != nil {
					panic(err)
				}
			},
			code: domain.ErrCodeModelViolation,
		},
		{
			name:   "unknown duration",
			mutate: func(f *fixture, c *domain.Contribution) { c.DurationID = 999 },
			code:   domain.ErrCodeNotFound,
		},
		{
			name:   "missing contributor",
			mutate: func(f *fixture, c *domain.Contribution) { c.ContributorID = 0 },
			code:   domain.ErrCodeInvalid,
		},
		{
			name:   "unknown task",
			mutate: func(f *fixture, c *domain.Contribution) { c.TaskID = 12345 },
			code:   domain.ErrCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			c := f.contribution(f.leaf)
			tt.mutate(f, c)

			err := f.uc.CreateContribution(f.ctx, c)
			assert.True(t, domain.IsDomainError(err, tt.code), "got %v", err)
			assert.Empty(t, f.buffer.ops, "domain errors are never buffered")
			assert.Empty(t, f.sums.taskIDs)
		})
	}
}

func TestCreateContribution_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.uc.CreateContribution(f.ctx, f.contribution(f.leaf)))

	err := f.uc.CreateContribution(f.ctx, f.contribution(f.leaf))
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.Empty(t, f.buffer.ops)
}

func TestWrite_StoreFailureIsBuffered(t *testing.T) {
	f := newFixture(t, true)
	f.store.FailWritesAfter(0, memory.ErrInjected)

	c := f.contribution(f.leaf)
	require.NoError(t, f.uc.CreateContribution(f.ctx, c))
	require.Len(t, f.buffer.ops, 1)
	assert.Equal(t, usecase.OperationCreate, f.buffer.ops[0].operation)
	assert.Equal(t, c.ContributionKey, f.buffer.ops[0].key)

	_, err := f.uc.GetContribution(f.ctx, c.ContributionKey)
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)
	assert.Empty(t, f.sums.taskIDs)
}

func TestWrite_StoreFailureWithoutBuffer(t *testing.T) {
	f := newFixture(t, false)
	f.store.FailWritesAfter(0, memory.ErrInjected)

	err := f.uc.CreateContribution(f.ctx, f.contribution(f.leaf))
	assert.ErrorIs(t, err, memory.ErrInjected)
}

func TestWrite_BufferFailureReturnsStoreError(t *testing.T) {
	f := newFixture(t, true)
	f.buffer.err = errors.New("disk full")
	f.store.FailWritesAfter(0, memory.ErrInjected)

	err := f.uc.CreateContribution(f.ctx, f.contribution(f.leaf))
	assert.ErrorIs(t, err, memory.ErrInjected)
}

func TestUpdateAndDeleteContribution(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.uc.CreateDuration(f.ctx, 75)
	require.NoError(t, err)

	c := f.contribution(f.leaf)
	require.NoError(t, f.uc.CreateContribution(f.ctx, c))

	c.DurationID = 75
	require.NoError(t, f.uc.UpdateContribution(f.ctx, c))
	got, err := f.uc.GetContribution(f.ctx, c.ContributionKey)
	require.NoError(t, err)
	assert.Equal(t, int64(75), got.DurationID)

	require.NoError(t, f.uc.DeleteContribution(f.ctx, c.ContributionKey))
	_, err = f.uc.GetContribution(f.ctx, c.ContributionKey)
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)

	err = f.uc.DeleteContribution(f.ctx, c.ContributionKey)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))

	assert.Equal(t, []int64{f.leaf.ID, f.leaf.ID, f.leaf.ID}, f.sums.taskIDs)
}

func TestDeleteContribution_StoreFailureIsBuffered(t *testing.T) {
	f := newFixture(t, true)
	c := f.contribution(f.leaf)
	require.NoError(t, f.uc.CreateContribution(f.ctx, c))

	f.store.FailWritesAfter(0, memory.ErrInjected)
	require.NoError(t, f.uc.DeleteContribution(f.ctx, c.ContributionKey))
	require.Len(t, f.buffer.ops, 1)
	assert.Equal(t, usecase.OperationDelete, f.buffer.ops[0].operation)
}

func TestDurations(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.uc.CreateDuration(f.ctx, f.minutes)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	_, err = f.uc.CreateDuration(f.ctx, 0)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = f.uc.CreateDuration(f.ctx, 100)
	require.NoError(t, err)
	d, err := f.uc.SetDurationActive(f.ctx, f.minutes, false)
	require.NoError(t, err)
	assert.False(t, d.Active)

	all, err := f.uc.ListDurations(f.ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Duration{{ID: 50}, {ID: 100, Active: true}}, all)

	active, err := f.uc.ListDurations(f.ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.Duration{{ID: 100, Active: true}}, active)

	_, err = f.uc.SetDurationActive(f.ctx, 12, true)
	assert.ErrorIs(t, err, domain.ErrDurationNotFound)
}

func TestReplayContribution(t *testing.T) {
	f := newFixture(t, true)
	c := f.contribution(f.leaf)

	require.NoError(t, f.uc.ReplayContribution(f.ctx, usecase.OperationCreate, c))
	_, err := f.uc.GetContribution(f.ctx, c.ContributionKey)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.leaf.ID}, f.sums.taskIDs)

	onContainer := f.contribution(f.parent)
	err = f.uc.ReplayContribution(f.ctx, usecase.OperationCreate, onContainer)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeModelViolation), "got %v", err)

	_, err = f.uc.SetDurationActive(f.ctx, f.minutes, false)
	require.NoError(t, err)
	err = f.uc.ReplayContribution(f.ctx, usecase.OperationUpdate, c)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeModelViolation), "got %v", err)

	require.NoError(t, f.uc.ReplayContribution(f.ctx, usecase.OperationDelete, c))
	_, err = f.uc.GetContribution(f.ctx, c.ContributionKey)
	assert.ErrorIs(t, err, domain.ErrContributionNotFound)

	_, err = f.uc.SetDurationActive(f.ctx, f.minutes, true)
	require.NoError(t, err)
	f.store.FailWritesAfter(0, memory.ErrInjected)
	err = f.uc.ReplayContribution(f.ctx, usecase.OperationCreate, c)
	assert.ErrorIs(t, err, memory.ErrInjected)
	assert.Empty(t, f.buffer.ops, "a replay is never buffered again")
	assert.Equal(t, []int64{f.leaf.ID, f.leaf.ID}, f.sums.taskIDs)
}
