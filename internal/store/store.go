package store

import (
	"context"
	"errors"

	"tasksync/internal/models"
)

// ErrNotFound is returned when a task does not exist or has been deleted.
var ErrNotFound = errors.New("task not found")

// Store defines the interface for task persistence operations.
type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, limit, offset int) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}
