package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/models"
)

func setupTestServer(t *testing.T, r chi.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/tasks/", WithTimeout(5*time.Second))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_List(t *testing.T) {
	r := chi.NewRouter()
	var gotQuery string
	r.Get("/api/tasks", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{
			"tasks": []models.Task{
				{ID: "1", Title: "A", Category: models.CategoryBug, Status: models.StatusTodo, Priority: models.PriorityLow},
				{ID: "2", Title: "B", Category: models.CategoryTest, Status: models.StatusDone, Priority: models.PriorityHigh},
			},
		})
	})
	c := setupTestServer(t, r)

	tasks, err := c.List(context.Background(), ListOptions{Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].Title)
	assert.Equal(t, models.PriorityHigh, tasks[1].Priority)
	assert.Equal(t, "limit=10&offset=5", gotQuery)
}

func TestClient_ListEmptyBody(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/tasks", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	c := setupTestServer(t, r)

	tasks, err := c.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestClient_Create(t *testing.T) {
	r := chi.NewRouter()
	var got models.NewTask
	r.Post("/api/tasks", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, models.Task{
			ID:        "srv-1",
			Title:     got.Title,
			Category:  got.Category,
			Status:    got.Status,
			Priority:  got.Priority,
			CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		})
	})
	c := setupTestServer(t, r)

	created, err := c.Create(context.Background(), models.NewTask{
		Title:    "New",
		Category: models.CategoryFeature,
		Status:   models.StatusTodo,
		Priority: models.PriorityMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, "New", got.Title)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestClient_UpdateSendsOnlyChangedFields(t *testing.T) {
	r := chi.NewRouter()
	var raw map[string]any
	r.Put("/api/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		require.NoError(t, json.Unmarshal(body, &raw))
		writeJSON(w, http.StatusOK, models.Task{ID: chi.URLParam(req, "id"), Title: "B"})
	})
	c := setupTestServer(t, r)

	title := "B"
	updated, err := c.Update(context.Background(), "42", models.TaskUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "42", updated.ID)
	assert.Equal(t, map[string]any{"title": "B"}, raw)
}

func TestClient_Delete(t *testing.T) {
	r := chi.NewRouter()
	deleted := ""
	r.Delete("/api/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		deleted = chi.URLParam(req, "id")
		writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
	})
	c := setupTestServer(t, r)

	require.NoError(t, c.Delete(context.Background(), "7"))
	assert.Equal(t, "7", deleted)
}

func TestClient_NotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
	})
	c := setupTestServer(t, r)

	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, Retryable(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Task not found", apiErr.Message)
}

func TestClient_ServerError(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/api/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete task"})
	})
	c := setupTestServer(t, r)

	err := c.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, Retryable(err))
	assert.Contains(t, err.Error(), "Failed to delete task")
}

func TestClient_PlainTextError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/tasks", func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	c := setupTestServer(t, r)

	_, err := c.List(context.Background(), ListOptions{})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url + "/api/tasks")
	_, err := c.List(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, Retryable(err))
}
