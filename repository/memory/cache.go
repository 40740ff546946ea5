package memory

import (
	"context"
	"sync"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

// SumsCache is a map-backed repository.SumsCache.
type SumsCache struct {
	mu      sync.Mutex
	entries map[int64]map[string]domain.TaskSums
}

// NewSumsCache returns an empty cache.
func NewSumsCache() *SumsCache {
	return &SumsCache{entries: make(map[int64]map[string]domain.TaskSums)}
}

var _ repository.SumsCache = (*SumsCache)(nil)

func (c *SumsCache) Get(ctx context.Context, taskID int64, variant string) (domain.TaskSums, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sums, ok := c.entries[taskID][variant]
	return sums, ok, nil
}

func (c *SumsCache) Set(ctx context.Context, taskID int64, variant string, sums domain.TaskSums) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[taskID] == nil {
		c.entries[taskID] = make(map[string]domain.TaskSums)
	}
	c.entries[taskID][variant] = sums
	return nil
}

func (c *SumsCache) Invalidate(ctx context.Context, taskIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range taskIDs {
		delete(c.entries, id)
	}
	return nil
}

// Len returns the number of tasks with at least one cached variant.
func (c *SumsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
