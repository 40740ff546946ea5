// Package memory keeps the whole time-tracking model in process. It backs the
// tests and local runs without Postgres, and mirrors the Postgres semantics:
// transactions roll back on error and task updates are version-checked.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

type txKey struct{}

type state struct {
	tasks         map[int64]domain.Task
	contributions map[domain.ContributionKey]domain.Contribution
	durations     map[int64]domain.Duration
	nextID        int64
}

func (s state) clone() state {
	out := state{
		tasks:         make(map[int64]domain.Task, len(s.tasks)),
		contributions: make(map[domain.ContributionKey]domain.Contribution, len(s.contributions)),
		durations:     make(map[int64]domain.Duration, len(s.durations)),
		nextID:        s.nextID,
	}
	for id, t := range s.tasks {
		t.Path = t.Path.Clone()
		out.tasks[id] = t
	}
	for k, c := range s.contributions {
		out.contributions[k] = c
	}
	for id, d := range s.durations {
		out.durations[id] = d
	}
	return out
}

// Store is an in-memory implementation of every repository port.
type Store struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data state

	// write failure injection
	writesBeforeFailure int
	failure             error

	// queries counts bulk fetch round trips; exposed for batching tests.
	queries int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		data: state{
			tasks:         make(map[int64]domain.Task),
			contributions: make(map[domain.ContributionKey]domain.Contribution),
			durations:     make(map[int64]domain.Duration),
		},
	}
}

// Tasks returns the task repository view.
func (s *Store) Tasks() repository.TaskRepository { return &taskRepository{s: s} }

// Contributions returns the contribution repository view.
func (s *Store) Contributions() repository.ContributionRepository {
	return &contributionRepository{s: s}
}

// Durations returns the duration repository view.
func (s *Store) Durations() repository.DurationRepository { return &durationRepository{s: s} }

// FailWritesAfter makes the (n+1)th write from now on fail with err. The
// injection is consumed by the first failure.
func (s *Store) FailWritesAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesBeforeFailure = n
	s.failure = err
}

// BulkQueries returns how many batched id queries were issued.
func (s *Store) BulkQueries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries
}

// Within implements repository.Transactor. Nested calls join the outer
// transaction; the outermost call restores the snapshot when fn fails.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

var _ repository.Transactor = (*Store)(nil)

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lockWrites serializes a write issued outside a transaction with the
// running one, so its rollback snapshot never covers the write. Call it
// before taking mu.
func (s *Store) lockWrites(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// write must be called with mu held.
func (s *Store) write() error {
	if s.failure == nil {
		return nil
	}
	if s.writesBeforeFailure > 0 {
		s.writesBeforeFailure--
		return nil
	}
	err := s.failure
	s.failure = nil
	return err
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("memory: injected write failure")
