package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/repository"
)

// sumsCache keeps one hash per task id; fields are query variants.
type sumsCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewSumsCache creates a Redis-backed SumsCache.
func NewSumsCache(client *redislib.Client, ttl time.Duration) repository.SumsCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &sumsCache{
		client: client,
		prefix: "sums:",
		ttl:    ttl,
	}
}

func (c *sumsCache) Get(ctx context.Context, taskID int64, variant string) (domain.TaskSums, bool, error) {
	result, err := c.client.HGet(ctx, c.key(taskID), variant).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return domain.TaskSums{}, false, nil
		}
		return domain.TaskSums{}, false, err
	}

	var sums domain.TaskSums
	if err := json.Unmarshal([]byte(result), &sums); err != nil {
		return domain.TaskSums{}, false, err
	}
	return sums, true, nil
}

func (c *sumsCache) Set(ctx context.Context, taskID int64, variant string, sums domain.TaskSums) error {
	payload, err := json.Marshal(sums)
	if err != nil {
		return err
	}
	key := c.key(taskID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, variant, payload)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *sumsCache) Invalidate(ctx context.Context, taskIDs ...int64) error {
	if len(taskIDs) == 0 {
		return nil
	}
	keys := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		keys[i] = c.key(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *sumsCache) key(taskID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, taskID)
}
