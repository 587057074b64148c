// Package coordinator issues task mutations against the remote gateway and
// reconciles their outcomes into the task cache.
//
// The cache has a single writer: an event loop goroutine that applies one
// reconciliation step at a time. Remote calls run concurrently and hand their
// outcome back to the loop as a continuation, so cache transitions never
// interleave. Operations on the same id are not ordered against each other;
// whichever response is reconciled last wins.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"tasksync/internal/cache"
	"tasksync/internal/gateway"
	"tasksync/internal/models"
)

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("coordinator closed")

// TempIDPrefix marks ids of optimistically staged tasks.
const TempIDPrefix = "temp-"

const fetchKey = "all"

type event struct {
	op      string
	id      string
	apply   func(cache.State) cache.State
	applied chan struct{}
}

// Coordinator owns the task cache.
type Coordinator struct {
	gw               gateway.Gateway
	now              func() time.Time
	optimisticCreate bool
	listOpts         gateway.ListOptions

	state   atomic.Pointer[cache.State]
	events  chan event
	quit    chan struct{}
	done    chan struct{}
	closing sync.Once
	fetches singleflight.Group

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOptimisticCreate stages created tasks under a temporary id until the
// server confirms them.
func WithOptimisticCreate(enabled bool) Option {
	return func(c *Coordinator) { c.optimisticCreate = enabled }
}

// WithClock overrides the time source used for lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithListOptions sets the paging used by full fetches.
func WithListOptions(opts gateway.ListOptions) Option {
	return func(c *Coordinator) { c.listOpts = opts }
}

// New creates a Coordinator over an idle, empty cache and starts its event loop.
func New(gw gateway.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		gw:     gw,
		now:    time.Now,
		events: make(chan event),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		subs:   make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	initial := cache.New()
	c.state.Store(&initial)

	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.events:
			next := ev.apply(*c.state.Load())
			c.state.Store(&next)
			close(ev.applied)
			log.Debug().Str("op", ev.op).Str("id", ev.id).Int("tasks", next.Len()).Msg("reconciled")
			c.notify()
		}
	}
}

// Close stops the event loop. In-flight operations resolve with ErrClosed
// once their remote call returns.
func (c *Coordinator) Close() {
	c.closing.Do(func() { close(c.quit) })
	<-c.done
}

// Snapshot returns the current cache state.
func (c *Coordinator) Snapshot() cache.State {
	return *c.state.Load()
}

// Subscribe returns a channel that is signalled after every reconciliation
// step. Signals coalesce when the receiver falls behind. The returned func
// unsubscribes.
func (c *Coordinator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, ch)
		c.subsMu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// dispatch hands a transition to the event loop and waits until it is applied.
func (c *Coordinator) dispatch(ctx context.Context, op, id string, apply func(cache.State) cache.State) error {
	ev := event{op: op, id: id, apply: apply, applied: make(chan struct{})}
	select {
	case c.events <- ev:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ev.applied
	return nil
}

// guarded adapts a state-machine transition; an illegal transition is logged
// and leaves the state unchanged.
func guarded(op string, step func(cache.State) (cache.State, error)) func(cache.State) cache.State {
	return func(s cache.State) cache.State {
		next, err := step(s)
		if err != nil {
			log.Error().Err(err).Str("op", op).Msg("rejected transition")
			return s
		}
		return next
	}
}

// withCause keeps cause as the operation's error and attaches a failed
// reconciliation if there was one.
func withCause(cause, err error) error {
	if err == nil {
		return cause
	}
	return errors.Join(cause, err)
}

func recordError(err error) func(cache.State) cache.State {
	return func(s cache.State) cache.State { return s.RecordError(err.Error()) }
}

// Fetch replaces the cache with the server's task list. Concurrent fetches
// share one remote call.
func (c *Coordinator) Fetch(ctx context.Context) *Result[[]models.Task] {
	res := newResult[[]models.Task]()
	rctx := context.WithoutCancel(ctx)
	go func() {
		tasks, err := c.refetch(rctx)
		res.resolve(tasks, err)
	}()
	return res
}

func (c *Coordinator) refetch(ctx context.Context) ([]models.Task, error) {
	v, err, _ := c.fetches.Do(fetchKey, func() (any, error) {
		return c.fetchAll(ctx)
	})
	tasks, _ := v.([]models.Task)
	return tasks, err
}

func (c *Coordinator) fetchAll(ctx context.Context) ([]models.Task, error) {
	if err := c.dispatch(ctx, "fetch.begin", "", guarded("fetch.begin", cache.State.BeginFetch)); err != nil {
		return nil, err
	}

	tasks, err := c.gw.List(ctx, c.listOpts)
	if err != nil {
		log.Warn().Err(err).Msg("fetch failed")
		return nil, c.onFetchFailed(ctx, err)
	}
	return tasks, c.onFetched(ctx, tasks)
}

func (c *Coordinator) onFetched(ctx context.Context, tasks []models.Task) error {
	at := c.now()
	return c.dispatch(ctx, "fetch.succeeded", "", guarded("fetch.succeeded", func(s cache.State) (cache.State, error) {
		return stillLoading(s).CompleteFetch(tasks, at)
	}))
}

func (c *Coordinator) onFetchFailed(ctx context.Context, cause error) error {
	err := c.dispatch(ctx, "fetch.failed", "", guarded("fetch.failed", func(s cache.State) (cache.State, error) {
		return stillLoading(s).FailFetch(cause.Error())
	}))
	return withCause(cause, err)
}

// stillLoading re-enters loading when an overlapping fetch has already
// settled the status, so the later completion is applied rather than rejected.
func stillLoading(s cache.State) cache.State {
	if s.Status() == cache.StatusLoading {
		return s
	}
	next, err := s.BeginFetch()
	if err != nil {
		return s
	}
	return next
}

// Create validates n locally, then creates it remotely. The task enters the
// cache only with its server-assigned id. With optimistic create enabled a
// staged copy under a temporary id is visible meanwhile and is removed if the
// remote call fails.
func (c *Coordinator) Create(ctx context.Context, n models.NewTask) *Result[models.Task] {
	if err := n.Validate(); err != nil {
		return resolved(models.Task{}, err)
	}
	rctx := context.WithoutCancel(ctx)

	tempID := ""
	if c.optimisticCreate {
		tempID = TempIDPrefix + uuid.NewString()
		now := c.now()
		staged := models.Task{
			ID:          tempID,
			Title:       n.Title,
			Description: n.Description,
			Category:    n.Category,
			Status:      n.Status,
			Priority:    n.Priority,
			CreatedAt:   now,
			UpdatedAt:   &now,
		}
		err := c.dispatch(rctx, "create.stage", tempID, func(s cache.State) cache.State {
			return s.Insert(staged)
		})
		if err != nil {
			return resolved(models.Task{}, err)
		}
	}

	res := newResult[models.Task]()
	go func() {
		created, err := c.gw.Create(rctx, n)
		if err != nil {
			log.Warn().Err(err).Str("temp_id", tempID).Msg("create failed")
			res.resolve(models.Task{}, c.onCreateFailed(rctx, tempID, err))
			return
		}
		res.resolve(created, c.onCreated(rctx, tempID, created))
	}()
	return res
}

func (c *Coordinator) onCreated(ctx context.Context, tempID string, created models.Task) error {
	at := c.now()
	return c.dispatch(ctx, "create.confirmed", created.ID, func(s cache.State) cache.State {
		if tempID != "" {
			s = s.Remove(tempID)
		}
		return s.Insert(created).Touch(at)
	})
}

func (c *Coordinator) onCreateFailed(ctx context.Context, tempID string, cause error) error {
	err := c.dispatch(ctx, "create.rollback", tempID, func(s cache.State) cache.State {
		if tempID != "" {
			s = s.Remove(tempID)
		}
		return s.RecordError(cause.Error())
	})
	return withCause(cause, err)
}

// Update patches the cached task immediately, then updates it remotely. On
// success the cached record is replaced by the server's version. On failure
// the whole cache is re-fetched and the update's error recorded before the
// result resolves.
func (c *Coordinator) Update(ctx context.Context, id string, changes models.TaskUpdate) *Result[models.Task] {
	if err := changes.Validate(); err != nil {
		return resolved(models.Task{}, err)
	}
	rctx := context.WithoutCancel(ctx)

	err := c.dispatch(rctx, "update.optimistic", id, func(s cache.State) cache.State {
		return s.Patch(id, changes)
	})
	if err != nil {
		return resolved(models.Task{}, err)
	}

	res := newResult[models.Task]()
	go func() {
		updated, err := c.gw.Update(rctx, id, changes)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("update failed, refetching")
			res.resolve(models.Task{}, c.onUpdateFailed(rctx, id, err))
			return
		}
		res.resolve(updated, c.onUpdated(rctx, id, updated))
	}()
	return res
}

func (c *Coordinator) onUpdated(ctx context.Context, id string, updated models.Task) error {
	at := c.now()
	return c.dispatch(ctx, "update.confirmed", id, func(s cache.State) cache.State {
		if _, ok := s.Get(id); !ok {
			return s
		}
		return s.Patch(id, updated.AsUpdate()).Touch(at)
	})
}

// onUpdateFailed re-reads the server state. The fetch in flight, if any, may
// have listed before the optimistic patch landed, so it is not joined.
func (c *Coordinator) onUpdateFailed(ctx context.Context, id string, cause error) error {
	c.fetches.Forget(fetchKey)
	if _, err := c.refetch(ctx); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("refetch after failed update")
	}
	return withCause(cause, c.dispatch(ctx, "update.failed", id, recordError(cause)))
}

// Delete removes the task remotely and drops it from the cache only once the
// server has confirmed.
func (c *Coordinator) Delete(ctx context.Context, id string) *Result[struct{}] {
	rctx := context.WithoutCancel(ctx)
	res := newResult[struct{}]()
	go func() {
		if err := c.gw.Delete(rctx, id); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("delete failed")
			res.resolve(struct{}{}, c.onDeleteFailed(rctx, err))
			return
		}
		res.resolve(struct{}{}, c.onDeleted(rctx, id))
	}()
	return res
}

func (c *Coordinator) onDeleted(ctx context.Context, id string) error {
	at := c.now()
	return c.dispatch(ctx, "delete.confirmed", id, func(s cache.State) cache.State {
		return s.Remove(id).Touch(at)
	})
}

func (c *Coordinator) onDeleteFailed(ctx context.Context, cause error) error {
	return withCause(cause, c.dispatch(ctx, "delete.failed", "", recordError(cause)))
}

// Refresh reconciles a single task with the server: it is patched or
// inserted when found and removed when the server no longer knows it.
func (c *Coordinator) Refresh(ctx context.Context, id string) *Result[models.Task] {
	rctx := context.WithoutCancel(ctx)
	res := newResult[models.Task]()
	go func() {
		task, err := c.gw.Get(rctx, id)
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			derr := c.dispatch(rctx, "refresh.gone", id, func(s cache.State) cache.State {
				return s.Remove(id)
			})
			res.resolve(models.Task{}, withCause(err, derr))
		case err != nil:
			res.resolve(models.Task{}, withCause(err, c.dispatch(rctx, "refresh.failed", id, recordError(err))))
		default:
			at := c.now()
			derr := c.dispatch(rctx, "refresh.confirmed", id, func(s cache.State) cache.State {
				if _, ok := s.Get(id); ok {
					return s.Patch(id, task.AsUpdate()).Touch(at)
				}
				return s.Insert(task).Touch(at)
			})
			res.resolve(task, derr)
		}
	}()
	return res
}

// LocalInsert adds a task to the cache without contacting the server.
func (c *Coordinator) LocalInsert(ctx context.Context, t models.Task) error {
	if t.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "is required"}
	}
	return c.dispatch(ctx, "local.insert", t.ID, func(s cache.State) cache.State { return s.Insert(t) })
}

// LocalPatch merges changes into a cached task without contacting the server.
func (c *Coordinator) LocalPatch(ctx context.Context, id string, changes models.TaskUpdate) error {
	if err := changes.Validate(); err != nil {
		return err
	}
	return c.dispatch(ctx, "local.patch", id, func(s cache.State) cache.State { return s.Patch(id, changes) })
}

// LocalRemove drops a cached task without contacting the server.
func (c *Coordinator) LocalRemove(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return c.dispatch(ctx, "local.remove", id, func(s cache.State) cache.State { return s.Remove(id) })
}
