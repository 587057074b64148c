package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tasksync/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTask(title string) *models.Task {
	return &models.Task{
		Title:       title,
		Description: "described",
		Category:    models.CategoryFeature,
		Status:      models.StatusTodo,
		Priority:    models.PriorityMedium,
	}
}

// stepClock makes created_at strictly increasing between inserts.
func stepClock(s *SQLiteStore) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func TestCreateTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	task := newTask("Write docs")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.ID == "" {
		t.Error("expected task ID to be set")
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if task.UpdatedAt == nil {
		t.Error("expected updated_at to be set")
	}
}

func TestCreateTask_RejectsInvalidEnum(t *testing.T) {
	store := setupTestDB(t)

	task := newTask("Bad")
	task.Status = "Blocked"
	if err := store.CreateTask(context.Background(), task); err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func TestGetTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	task := newTask("Write docs")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}

	if got.Title != task.Title {
		t.Errorf("expected title %q, got %q", task.Title, got.Title)
	}
	if got.Description != task.Description {
		t.Errorf("expected description %q, got %q", task.Description, got.Description)
	}
	if got.Category != task.Category || got.Status != task.Status || got.Priority != task.Priority {
		t.Errorf("enum mismatch: got %+v", got)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", task.CreatedAt, got.CreatedAt)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetTask(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasks_OrderedByCreation(t *testing.T) {
	store := setupTestDB(t)
	stepClock(store)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if err := store.CreateTask(ctx, newTask(title)); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, err := store.ListTasks(ctx, 100, 0)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i, want := range []string{"first", "second", "third"} {
		if tasks[i].Title != want {
			t.Errorf("position %d: expected %q, got %q", i, want, tasks[i].Title)
		}
	}
}

func TestListTasks_LimitAndOffset(t *testing.T) {
	store := setupTestDB(t)
	stepClock(store)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d"} {
		if err := store.CreateTask(ctx, newTask(title)); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	tasks, err := store.ListTasks(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "b" || tasks[1].Title != "c" {
		t.Errorf("unexpected page: %+v", tasks)
	}
}

func TestListTasks_EmptyIsNotNil(t *testing.T) {
	store := setupTestDB(t)

	tasks, err := store.ListTasks(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if tasks == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestUpdateTask(t *testing.T) {
	store := setupTestDB(t)
	stepClock(store)
	ctx := context.Background()

	task := newTask("Original")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	created := *task.UpdatedAt

	task.Title = "Updated"
	task.Status = models.StatusDone
	if err := store.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	got, _ := store.GetTask(ctx, task.ID)
	if got.Title != "Updated" {
		t.Errorf("expected title %q, got %q", "Updated", got.Title)
	}
	if got.Status != models.StatusDone {
		t.Errorf("expected status %q, got %q", models.StatusDone, got.Status)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.After(created) {
		t.Errorf("expected updated_at to advance past %v, got %v", created, got.UpdatedAt)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	store := setupTestDB(t)

	task := newTask("Ghost")
	task.ID = "missing"
	if err := store.UpdateTask(context.Background(), task); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	task := newTask("Doomed")
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if _, err := store.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted task to be hidden, got %v", err)
	}
	tasks, _ := store.ListTasks(ctx, 10, 0)
	if len(tasks) != 0 {
		t.Errorf("expected no live tasks, got %d", len(tasks))
	}

	if err := store.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected second delete to be ErrNotFound, got %v", err)
	}

	var deletedAt sql.NullTime
	if err := store.db.QueryRowContext(ctx, `SELECT deleted_at FROM tasks WHERE id = ?`, task.ID).Scan(&deletedAt); err != nil {
		t.Fatalf("failed to read row: %v", err)
	}
	if !deletedAt.Valid {
		t.Error("expected row to be kept with deleted_at set")
	}
}

func TestNewSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	task := newTask("Persisted")
	if err := first.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	first.Close()

	second, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	if _, err := second.GetTask(ctx, task.ID); err != nil {
		t.Errorf("expected task to survive reopen: %v", err)
	}

	m := migrator{db: second.db, files: migrationsFS}
	applied, err := m.applied()
	if err != nil {
		t.Fatalf("applied failed: %v", err)
	}
	migrations, err := m.load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(applied) != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), len(applied))
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion int
		wantName    string
		wantErr     bool
	}{
		{"001_create_tasks.sql", 1, "create_tasks", false},
		{"012_add_index_on_status.sql", 12, "add_index_on_status", false},
		{"nounderscore.sql", 0, "", true},
		{"abc_name.sql", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, err := parseMigrationFilename(tt.filename)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if version != tt.wantVersion || name != tt.wantName {
				t.Errorf("got (%d, %q), want (%d, %q)", version, name, tt.wantVersion, tt.wantName)
			}
		})
	}
}
