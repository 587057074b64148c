// Package facade is the single entry point for reading task state and
// invoking task mutations.
package facade

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tasksync/internal/cache"
	"tasksync/internal/coordinator"
	"tasksync/internal/models"
	"tasksync/internal/view"
)

// Facade hides the coordinator and cache behind a stable interface. The
// first call of any method activates it, which starts the initial fetch.
type Facade struct {
	coord *coordinator.Coordinator

	activation sync.Once
	initial    *coordinator.Result[[]models.Task]
}

// New wraps an existing coordinator. The facade takes ownership of it.
func New(coord *coordinator.Coordinator) *Facade {
	return &Facade{coord: coord}
}

// Activate starts the initial fetch on first call and returns its result.
// Later calls return the same result.
func (f *Facade) Activate(ctx context.Context) *coordinator.Result[[]models.Task] {
	f.activation.Do(func() {
		log.Debug().Msg("facade activated, fetching tasks")
		f.initial = f.coord.Fetch(ctx)
	})
	return f.initial
}

func (f *Facade) snapshot() cache.State {
	f.Activate(context.Background())
	return f.coord.Snapshot()
}

// Tasks returns the cached tasks in cache order.
func (f *Facade) Tasks() []models.Task {
	return f.snapshot().Tasks()
}

// Status returns the status of the most recent full fetch.
func (f *Facade) Status() cache.SyncStatus {
	return f.snapshot().Status()
}

// Err returns the last surfaced error message, or "".
func (f *Facade) Err() string {
	return f.snapshot().Err()
}

// LastUpdated returns when the cache last changed through a successful
// mutation or fetch.
func (f *Facade) LastUpdated() (time.Time, bool) {
	return f.snapshot().LastUpdated()
}

// TaskByID looks up a cached task.
func (f *Facade) TaskByID(id string) (models.Task, bool) {
	return f.snapshot().Get(id)
}

// View returns a freshly computed filtered and sorted projection.
func (f *Facade) View(filter view.Filter, sort view.Sort) []models.Task {
	return view.Project(f.Tasks(), filter, sort)
}

// Fetch re-reads every task from the server. Failures are also recorded in Err.
func (f *Facade) Fetch(ctx context.Context) error {
	f.Activate(ctx)
	_, err := f.coord.Fetch(ctx).Wait(ctx)
	return err
}

// CreateAsync starts a create and returns without waiting for the server.
func (f *Facade) CreateAsync(ctx context.Context, n models.NewTask) *coordinator.Result[models.Task] {
	f.Activate(ctx)
	return f.coord.Create(ctx, n)
}

// Create creates a task and waits until it is reconciled into the cache.
// Validation failures return before any network call.
func (f *Facade) Create(ctx context.Context, n models.NewTask) (models.Task, error) {
	return f.CreateAsync(ctx, n).Wait(ctx)
}

// UpdateAsync applies changes locally and returns without waiting for the
// server; the change is visible through Tasks as soon as it returns.
func (f *Facade) UpdateAsync(ctx context.Context, id string, changes models.TaskUpdate) *coordinator.Result[models.Task] {
	f.Activate(ctx)
	return f.coord.Update(ctx, id, changes)
}

// Update updates a task and waits for reconciliation.
func (f *Facade) Update(ctx context.Context, id string, changes models.TaskUpdate) (models.Task, error) {
	return f.UpdateAsync(ctx, id, changes).Wait(ctx)
}

// DeleteAsync starts a delete and returns without waiting for the server.
func (f *Facade) DeleteAsync(ctx context.Context, id string) *coordinator.Result[struct{}] {
	f.Activate(ctx)
	return f.coord.Delete(ctx, id)
}

// Delete deletes a task and waits for reconciliation.
func (f *Facade) Delete(ctx context.Context, id string) error {
	_, err := f.DeleteAsync(ctx, id).Wait(ctx)
	return err
}

// Refresh reconciles one task with the server.
func (f *Facade) Refresh(ctx context.Context, id string) (models.Task, error) {
	f.Activate(ctx)
	return f.coord.Refresh(ctx, id).Wait(ctx)
}

// LocalInsert adds a task to the cache only.
func (f *Facade) LocalInsert(ctx context.Context, t models.Task) error {
	f.Activate(ctx)
	return f.coord.LocalInsert(ctx, t)
}

// LocalPatch changes a cached task only.
func (f *Facade) LocalPatch(ctx context.Context, id string, changes models.TaskUpdate) error {
	f.Activate(ctx)
	return f.coord.LocalPatch(ctx, id, changes)
}

// LocalRemove drops a cached task only.
func (f *Facade) LocalRemove(ctx context.Context, id string) error {
	f.Activate(ctx)
	return f.coord.LocalRemove(ctx, id)
}

// Subscribe notifies after every change to the cache. Call the returned func
// to stop.
func (f *Facade) Subscribe() (<-chan struct{}, func()) {
	return f.coord.Subscribe()
}

// Close releases the coordinator.
func (f *Facade) Close() {
	f.coord.Close()
}
