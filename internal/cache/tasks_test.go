package cache

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"staff-tracker/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var redisClient *redis.Client

func TestMain(m *testing.M) {
	var resource *dockertest.Resource
	pool, err := dockertest.NewPool("")
	if err == nil && pool.Client.Ping() == nil {
		resource, err = pool.Run("redis", "7-alpine", nil)
		if err == nil {
			_ = resource.Expire(120)
			err = pool.Retry(func() error {
				redisClient = redis.NewClient(&redis.Options{Addr: resource.GetHostPort("6379/tcp")})
				return redisClient.Ping(context.Background()).Err()
			})
			if err != nil {
				redisClient = nil
			}
		}
	}

	code := m.Run()
	if resource != nil {
		_ = pool.Purge(resource)
	}
	os.Exit(code)
}

func TestNilCacheNeverHits(t *testing.T) {
	var c *TaskCache
	ctx := context.Background()

	c.Set(ctx, models.Task{ID: 1}, c.Version(ctx, 1))
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
	c.Invalidate(ctx, 1)

	assert.Nil(t, NewTaskCache(nil))
}

func TestTaskCacheRoundTrip(t *testing.T) {
	if redisClient == nil {
		t.Skip("redis container not available")
	}
	c := NewTaskCache(redisClient)
	ctx := context.Background()
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task := models.Task{
		ID:         42,
		UserID:     7,
		Title:      "Inventory",
		CategoryID: sql.NullInt64{Int64: 3, Valid: true},
		Category:   "Ops",
		Priority:   models.PriorityHigh,
		Status:     models.StatusPending,
		DueDate:    due,
	}

	c.Set(ctx, task, c.Version(ctx, 42))
	got, ok := c.Get(ctx, 42)
	require.True(t, ok)
	assert.Equal(t, task.CategoryID, got.CategoryID)
	assert.Equal(t, "Ops", got.Category)
	assert.True(t, got.DueDate.Equal(due))

	ttl, err := redisClient.TTL(ctx, "task:42").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	c.Invalidate(ctx, 42)
	_, ok = c.Get(ctx, 42)
	assert.False(t, ok)
}

func TestSetAfterInvalidateIsDropped(t *testing.T) {
	if redisClient == nil {
		t.Skip("redis container not available")
	}
	c := NewTaskCache(redisClient)
	ctx := context.Background()
	stale := models.Task{ID: 43, UserID: 7, Title: "Audit", Status: models.StatusPending}

	// A reader takes the version, then a writer commits and invalidates
	// before the reader stores what it loaded.
	version := c.Version(ctx, 43)
	c.Invalidate(ctx, 43)
	c.Set(ctx, stale, version)

	_, ok := c.Get(ctx, 43)
	assert.False(t, ok)

	fresh := stale
	fresh.Status = models.StatusCompleted
	c.Set(ctx, fresh, c.Version(ctx, 43))
	got, ok := c.Get(ctx, 43)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, got.Status)

	ttl, err := redisClient.TTL(ctx, "task:43:version").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}

func TestUnreadableVersionNeverStores(t *testing.T) {
	if redisClient == nil {
		t.Skip("redis container not available")
	}
	c := NewTaskCache(redisClient)
	ctx := context.Background()

	c.Set(ctx, models.Task{ID: 44, Title: "Ledger"}, -1)
	_, ok := c.Get(ctx, 44)
	assert.False(t, ok)
}
