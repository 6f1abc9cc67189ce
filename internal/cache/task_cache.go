// Package cache keeps board task listings in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"taskboard/internal/model"
)

// TaskCache is a read-through cache of board task listings. A nil Redis
// client turns it into a passthrough.
type TaskCache struct {
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewTaskCache(client *redis.Client, ttl time.Duration) *TaskCache {
	if ttl < 0 {
		ttl = 0
	}
	return &TaskCache{redis: client, ttl: ttl}
}

// Get returns the cached listing of boardID or calls load and stores its
// result. Concurrent misses for the same board share one load.
func (c *TaskCache) Get(ctx context.Context, boardID uuid.UUID, load func(context.Context) ([]model.Task, error)) ([]model.Task, error) {
	if c.redis == nil {
		return load(ctx)
	}
	if tasks, ok := c.lookup(ctx, boardID); ok {
		return tasks, nil
	}

	// Waiters share the fill; it outlives the cancellation of whichever caller started it.
	fillCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(boardID.String(), func() (interface{}, error) {
		version := c.version(fillCtx, boardID)
		tasks, err := load(fillCtx)
		if err != nil {
			return nil, err
		}
		c.store(fillCtx, boardID, version, tasks)
		return tasks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Task), nil
}

// Invalidate drops the listing of boardID and bumps its version so a load
// that started before the change does not write stale data back.
func (c *TaskCache) Invalidate(ctx context.Context, boardID uuid.UUID) {
	if c.redis == nil {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(boardID))
		pipe.Del(ctx, tasksKey(boardID))
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{"board_id": boardID, "error": err}).Warn("task cache invalidation failed")
	}
}

func (c *TaskCache) lookup(ctx context.Context, boardID uuid.UUID) ([]model.Task, bool) {
	data, err := c.redis.Get(ctx, tasksKey(boardID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithFields(log.Fields{"board_id": boardID, "error": err}).Debug("task cache read failed")
		}
		return nil, false
	}
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksKey(boardID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *TaskCache) version(ctx context.Context, boardID uuid.UUID) int64 {
	v, err := c.redis.Get(ctx, versionKey(boardID)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// store writes tasks only while the board version still matches the one seen
// before loading.
func (c *TaskCache) store(ctx context.Context, boardID uuid.UUID, version int64, tasks []model.Task) {
	if c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(boardID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tasksKey(boardID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey(boardID))
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		log.WithFields(log.Fields{"board_id": boardID, "error": err}).Debug("task cache write failed")
	}
}

func tasksKey(boardID uuid.UUID) string {
	return "board-tasks:" + boardID.String()
}

func versionKey(boardID uuid.UUID) string {
	return "board-tasks-version:" + boardID.String()
}
