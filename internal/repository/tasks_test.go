package repository_test

import (
	"context"
	"testing"
	"time"

	"staff-tracker/internal/models"
	"staff-tracker/internal/repository"
	"staff-tracker/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatusStampsCompletionOnlyWhenAsked(t *testing.T) {
	testutil.RequireDB(t, testDB)
	ctx := context.Background()
	user := testutil.CreateUser(t, testDB, "pw")
	task := testutil.CreateTask(t, testDB, user.ID, models.StatusPending, time.Now().Add(time.Hour))
	repo := repository.NewTaskRepository(testDB)

	stamp := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateStatus(ctx, task.ID, models.StatusCompleted, true, stamp))
	require.NoError(t, repo.UpdateStatus(ctx, task.ID, models.StatusInProgress, false, time.Now()))

	got, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.CompletionDate)
	assert.True(t, got.CompletionDate.Equal(stamp))
}

func TestUpdateStatusUnknownTask(t *testing.T) {
	testutil.RequireDB(t, testDB)
	err := repository.NewTaskRepository(testDB).UpdateStatus(context.Background(), 999999, models.StatusCompleted, true, time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListTasksByOwner(t *testing.T) {
	testutil.RequireDB(t, testDB)
	ctx := context.Background()
	owner := testutil.CreateUser(t, testDB, "pw")
	other := testutil.CreateUser(t, testDB, "pw")
	testutil.CreateTask(t, testDB, owner.ID, models.StatusPending, time.Now().Add(2*time.Hour))
	testutil.CreateTask(t, testDB, owner.ID, models.StatusPending, time.Now().Add(time.Hour))
	testutil.CreateTask(t, testDB, other.ID, models.StatusPending, time.Now())

	tasks, err := repository.NewTaskRepository(testDB).List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].DueDate.Before(tasks[1].DueDate))
	for _, task := range tasks {
		assert.Equal(t, owner.ID, task.UserID)
	}
}

func TestCategoryFindOrCreateIsStable(t *testing.T) {
	testutil.RequireDB(t, testDB)
	ctx := context.Background()
	repo := repository.NewCategoryRepository(testDB)

	first, err := repo.FindOrCreate(ctx, "Compliance")
	require.NoError(t, err)
	second, err := repo.FindOrCreate(ctx, "Compliance")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
