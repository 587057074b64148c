package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tasksync/internal/models"
	"tasksync/internal/store"
)

const taskNotFound = "Task not found"

// parseNonNegative reads an integer query parameter, returning def when absent.
func parseNonNegative(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ListTasks returns a page of live tasks in creation order.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseNonNegative(r, "limit", h.defaultLimit)
	if !ok || limit == 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, ok := parseNonNegative(r, "offset", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), limit, offset)
	if err != nil {
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string][]models.Task{"tasks": tasks})
}

// GetTask returns a single task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// CreateTask creates a new task from a JSON body.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input models.NewTask
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := input.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Status:      input.Status,
		Priority:    input.Priority,
	}
	if err := h.store.CreateTask(r.Context(), task); err != nil {
		respondServerError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// UpdateTask merges a partial JSON body into an existing task.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var changes models.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := changes.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// updatedAt is server-owned.
	changes.UpdatedAt = nil

	current, err := h.store.GetTask(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	task := changes.Apply(*current)
	if err := h.store.UpdateTask(ctx, &task); err != nil {
		h.storeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask soft-deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func (h *Handlers) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, taskNotFound)
		return
	}
	respondServerError(w, r, err)
}
