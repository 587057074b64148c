// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"tasksync/internal/gateway"
	"tasksync/internal/models"
)

// Fake is an in-memory task API. Failures can be injected per operation and
// remote calls can be held at a gate to observe state before a reply lands.
type Fake struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int
	now    func() time.Time
	gate   chan struct{}
	held   map[string]bool

	FailList   error
	FailGet    error
	FailCreate error
	FailUpdate error
	FailDelete error

	calls map[string]int
}

// New returns a Fake seeded with tasks.
func New(tasks ...models.Task) *Fake {
	return &Fake{
		tasks: slices.Clone(tasks),
		now:   func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		calls: make(map[string]int),
	}
}

var _ gateway.Gateway = (*Fake)(nil)

// Hold makes subsequent calls block until Release. With ops given, only
// those operations ("list", "get", "create", "update", "delete") block.
func (f *Fake) Hold(ops ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.held = nil
	if len(ops) > 0 {
		f.held = make(map[string]bool, len(ops))
		for _, op := range ops {
			f.held[op] = true
		}
	}
}

// Release unblocks held calls.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
		f.held = nil
	}
}

// SetFailure swaps an injected failure under the lock.
func (f *Fake) SetFailure(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Tasks returns the server-side task list.
func (f *Fake) Tasks() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.tasks)
}

func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gate
	if f.held != nil && !f.held[op] {
		gate = nil
	}
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) index(id string) int {
	return slices.IndexFunc(f.tasks, func(t models.Task) bool { return t.ID == id })
}

func notFound() error {
	return &gateway.Error{StatusCode: 404, Message: "Task not found"}
}

func (f *Fake) List(ctx context.Context, _ gateway.ListOptions) ([]models.Task, error) {
	if err := f.enter(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList != nil {
		return nil, f.FailList
	}
	return slices.Clone(f.tasks), nil
}

func (f *Fake) Get(ctx context.Context, id string) (models.Task, error) {
	if err := f.enter(ctx, "get"); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailGet != nil {
		return models.Task{}, f.FailGet
	}
	i := f.index(id)
	if i < 0 {
		return models.Task{}, notFound()
	}
	return f.tasks[i], nil
}

func (f *Fake) Create(ctx context.Context, n models.NewTask) (models.Task, error) {
	if err := f.enter(ctx, "create"); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate != nil {
		return models.Task{}, f.FailCreate
	}
	f.nextID++
	now := f.now()
	t := models.Task{
		ID:          fmt.Sprintf("srv-%d", f.nextID),
		Title:       n.Title,
		Description: n.Description,
		Category:    n.Category,
		Status:      n.Status,
		Priority:    n.Priority,
		CreatedAt:   now,
		UpdatedAt:   &now,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *Fake) Update(ctx context.Context, id string, changes models.TaskUpdate) (models.Task, error) {
	if err := f.enter(ctx, "update"); err != nil {
		return models.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailUpdate != nil {
		return models.Task{}, f.FailUpdate
	}
	i := f.index(id)
	if i < 0 {
		return models.Task{}, notFound()
	}
	now := f.now()
	changes.UpdatedAt = &now
	f.tasks[i] = changes.Apply(f.tasks[i])
	return f.tasks[i], nil
}

func (f *Fake) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete != nil {
		return f.FailDelete
	}
	i := f.index(id)
	if i < 0 {
		return notFound()
	}
	f.tasks = slices.Delete(f.tasks, i, i+1)
	return nil
}
