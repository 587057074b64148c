package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/cache"
	"tasksync/internal/coordinator"
	"tasksync/internal/facade"
	"tasksync/internal/gateway"
	"tasksync/internal/models"
	"tasksync/internal/view"
)

// TestFacadeAgainstServer drives the client stack against the real handlers.
func TestFacadeAgainstServer(t *testing.T) {
	h, _ := setupTestHandlers(t)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	client := gateway.NewClient(srv.URL+"/api/tasks", gateway.WithTimeout(5*time.Second))
	f := facade.New(coordinator.New(client))
	t.Cleanup(f.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := f.Activate(ctx).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.StatusSucceeded, f.Status())
	assert.Empty(t, f.Tasks())

	low, err := f.Create(ctx, models.NewTask{
		Title:    "Low one",
		Category: models.CategoryBug,
		Status:   models.StatusTodo,
		Priority: models.PriorityLow,
	})
	require.NoError(t, err)
	high, err := f.Create(ctx, models.NewTask{
		Title:    "High one",
		Category: models.CategoryFeature,
		Status:   models.StatusDone,
		Priority: models.PriorityHigh,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, low.ID)
	assert.Len(t, f.Tasks(), 2)

	sorted := f.View(view.Filter{}, view.Sort{Criteria: view.ByPriority, Order: view.Desc})
	require.Len(t, sorted, 2)
	assert.Equal(t, high.ID, sorted[0].ID)

	status := models.StatusInProgress
	updated, err := f.Update(ctx, low.ID, models.TaskUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.NotNil(t, updated.UpdatedAt)

	require.NoError(t, f.Delete(ctx, high.ID))
	_, ok := f.TaskByID(high.ID)
	assert.False(t, ok)

	_, err = f.Refresh(ctx, high.ID)
	require.ErrorIs(t, err, gateway.ErrNotFound)

	require.NoError(t, f.Fetch(ctx))
	tasks := f.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, low.ID, tasks[0].ID)
	assert.Equal(t, models.StatusInProgress, tasks[0].Status)
	assert.Empty(t, f.Err())
}

func TestFacadeAgainstServer_FailedUpdateRollsBack(t *testing.T) {
	h, s := setupTestHandlers(t)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	task := createTestTask(t, s, "Stable")

	f := facade.New(coordinator.New(gateway.NewClient(srv.URL + "/api/tasks")))
	t.Cleanup(f.Close)
	ctx := context.Background()
	require.NoError(t, f.Fetch(ctx))

	title := "Renamed"
	_, err := f.Update(ctx, "no-such-id", models.TaskUpdate{Title: &title})
	require.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Contains(t, f.Err(), "Task not found")

	got, ok := f.TaskByID(task.ID)
	require.True(t, ok)
	assert.Equal(t, "Stable", got.Title)
}
