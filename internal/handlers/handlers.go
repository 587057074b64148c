package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"tasksync/internal/store"
)

const defaultListLimit = 100

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	store        store.Store
	defaultLimit int
}

// New creates a new Handlers instance. A non-positive defaultLimit falls back to 100.
func New(s store.Store, defaultLimit int) *Handlers {
	if defaultLimit <= 0 {
		defaultLimit = defaultListLimit
	}
	return &Handlers{
		store:        s,
		defaultLimit: defaultLimit,
	}
}

// Routes mounts the task API under /api/tasks.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Get("/{id}", h.GetTask)
		r.Put("/{id}", h.UpdateTask)
		r.Delete("/{id}", h.DeleteTask)
	})

	return r
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("internal server error")
	respondError(w, http.StatusInternalServerError, "internal server error")
}
