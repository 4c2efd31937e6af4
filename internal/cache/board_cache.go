package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	dom "taskmate/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyBoard = "board:"
	keyList  = "tasks:"
)

// BoardCache caches per-project board and task-list reads in Redis.
type BoardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBoardCache returns a new BoardCache.
func NewBoardCache(rdb *redis.Client, ttl time.Duration) *BoardCache {
	return &BoardCache{rdb: rdb, ttl: ttl}
}

// GetBoard returns the cached board for a project or nil if miss.
func (c *BoardCache) GetBoard(ctx context.Context, projectID int64) ([]dom.Task, error) {
	return c.get(ctx, boardKey(projectID))
}

// SetBoard stores the board in cache.
func (c *BoardCache) SetBoard(ctx context.Context, projectID int64, tasks []dom.Task) error {
	return c.set(ctx, boardKey(projectID), tasks)
}

// taskPage keeps the total next to the page so paginated responses can be
// served from cache whole.
type taskPage struct {
	Items []dom.Task `json:"items"`
	Total int        `json:"total"`
}

// GetList returns a cached filtered task page, keyed by the filter signature.
// A nil slice with ok=false means miss.
func (c *BoardCache) GetList(ctx context.Context, projectID int64, sig string) ([]dom.Task, int, bool, error) {
	b, err := c.rdb.Get(ctx, listKey(projectID, sig)).Bytes()
	if err == redis.Nil {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var page taskPage
	if err := json.Unmarshal(b, &page); err != nil {
		return nil, 0, false, err
	}
	return page.Items, page.Total, true, nil
}

// SetList stores a filtered task page in cache.
func (c *BoardCache) SetList(ctx context.Context, projectID int64, sig string, tasks []dom.Task, total int) error {
	b, err := json.Marshal(taskPage{Items: tasks, Total: total})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(projectID, sig), b, c.ttl).Err()
}

// InvalidateProject removes board and list keys for a project (cache
// invalidation on write).
func (c *BoardCache) InvalidateProject(ctx context.Context, projectID int64) error {
	if err := c.rdb.Del(ctx, boardKey(projectID)).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, listKey(projectID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *BoardCache) get(ctx context.Context, key string) ([]dom.Task, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.Task
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *BoardCache) set(ctx context.Context, key string, tasks []dom.Task) error {
	b, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func boardKey(projectID int64) string {
	return keyBoard + strconv.FormatInt(projectID, 10)
}

func listKey(projectID int64, sig string) string {
	return keyList + strconv.FormatInt(projectID, 10) + ":" + sig
}
