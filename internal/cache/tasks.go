// Package cache is the redis read cache for task rows.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const taskTTL = time.Hour

// Versions outlive cached rows so a reader that started before an
// invalidation always sees the bump.
const versionTTL = 2 * taskTTL

// TaskCache stores tasks under task:<id>. A nil *TaskCache is valid and
// never hits.
//
// Every invalidation bumps task:<id>:version. Readers take the version
// before loading from the database and Set stores the row only if the
// version is unchanged, so a slow read cannot put back a row that was
// updated or deleted meanwhile.
type TaskCache struct {
	client *redis.Client
}

func NewTaskCache(client *redis.Client) *TaskCache {
	if client == nil {
		return nil
	}
	return &TaskCache{client: client}
}

type entry struct {
	models.Task
	CategoryID int64 `json:"category_id,omitempty"`
}

func taskKey(id int) string { return fmt.Sprintf("task:%d", id) }

func versionKey(id int) string { return fmt.Sprintf("task:%d:version", id) }

var errVersionMoved = errors.New("task version moved")

func (c *TaskCache) Get(ctx context.Context, id int) (models.Task, bool) {
	if c == nil {
		return models.Task{}, false
	}
	raw, err := c.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.ErrorLogger.Warn("Redis get failed", zap.Int("task_id", id), zap.Error(err))
		}
		return models.Task{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		logger.ErrorLogger.Warn("Discarding corrupt cache entry", zap.Int("task_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return models.Task{}, false
	}
	task := e.Task
	if e.CategoryID != 0 {
		task.CategoryID = sql.NullInt64{Int64: e.CategoryID, Valid: true}
	}
	return task, true
}

// Version returns the invalidation count for a task. It is -1 when redis
// cannot answer, which no later Set will match.
func (c *TaskCache) Version(ctx context.Context, id int) int64 {
	if c == nil {
		return 0
	}
	v, err := c.client.Get(ctx, versionKey(id)).Int64()
	if err != nil && err != redis.Nil {
		logger.ErrorLogger.Warn("Redis version read failed", zap.Int("task_id", id), zap.Error(err))
		return -1
	}
	return v
}

// Set caches task if its version still equals version.
func (c *TaskCache) Set(ctx context.Context, task models.Task, version int64) {
	if c == nil || version < 0 {
		return
	}
	e := entry{Task: task}
	if task.CategoryID.Valid {
		e.CategoryID = task.CategoryID.Int64
	}
	data, err := json.Marshal(e)
	if err != nil {
		logger.ErrorLogger.Warn("Encoding cache entry", zap.Int("task_id", task.ID), zap.Error(err))
		return
	}

	vkey := versionKey(task.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, taskKey(task.ID), data, taskTTL)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil, errors.Is(err, errVersionMoved), errors.Is(err, redis.TxFailedErr):
	default:
		logger.ErrorLogger.Warn("Redis set failed", zap.Int("task_id", task.ID), zap.Error(err))
	}
}

func (c *TaskCache) Invalidate(ctx context.Context, id int) {
	if c == nil {
		return
	}
	vkey := versionKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		pipe.Del(ctx, taskKey(id))
		return nil
	})
	if err != nil {
		logger.ErrorLogger.Warn("Redis invalidate failed", zap.Int("task_id", id), zap.Error(err))
	}
}
