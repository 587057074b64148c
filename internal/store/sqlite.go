package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tasksync/internal/models"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store with the given database path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const taskColumns = `id, title, description, category, status, priority, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		task      models.Task
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Status,
		&task.Priority,
		&task.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return models.Task{}, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		task.UpdatedAt = &t
	}
	return task, nil
}

// CreateTask assigns an id and timestamps to task and inserts it.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *models.Task) error {
	now := s.now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = &now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, category, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, task.Description, task.Category, task.Status, task.Priority, now, now)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE id = ? AND deleted_at IS NULL
	`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// ListTasks returns live tasks in creation order.
func (s *SQLiteStore) ListTasks(ctx context.Context, limit, offset int) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks WHERE deleted_at IS NULL
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTask overwrites the mutable fields of task and stamps updated_at.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *models.Task) error {
	now := s.now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, category = ?, status = ?, priority = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, task.Title, task.Description, task.Category, task.Status, task.Priority, now, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	if err := expectAffected(result, task.ID); err != nil {
		return err
	}
	task.UpdatedAt = &now

	return nil
}

// DeleteTask soft-deletes a task. Deleted tasks are invisible to Get and List.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return expectAffected(result, id)
}

func expectAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
