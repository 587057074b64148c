// Package cache holds the in-memory projection of server task state.
//
// A State is an immutable snapshot. Every transition returns a new State and
// leaves the receiver untouched, so snapshots handed to readers never change
// underneath them. Transitions never fail: a target id that is not present is
// a silent no-op, which keeps late or duplicated deliveries harmless.
package cache

import (
	"fmt"
	"slices"
	"time"

	"tasksync/internal/models"
)

// SyncStatus reflects the most recent full fetch.
type SyncStatus string

const (
	StatusIdle      SyncStatus = "idle"
	StatusLoading   SyncStatus = "loading"
	StatusSucceeded SyncStatus = "succeeded"
	StatusFailed    SyncStatus = "failed"
)

// allowed lists the legal fetch status transitions. A loading fetch may be
// re-entered, everything else must pass through loading.
var allowed = map[SyncStatus][]SyncStatus{
	StatusIdle:      {StatusLoading},
	StatusLoading:   {StatusLoading, StatusSucceeded, StatusFailed},
	StatusSucceeded: {StatusLoading},
	StatusFailed:    {StatusLoading},
}

// CanTransition reports whether the fetch state machine permits from -> to.
func CanTransition(from, to SyncStatus) bool {
	return slices.Contains(allowed[from], to)
}

// State is a snapshot of the task cache.
type State struct {
	tasks       []models.Task
	status      SyncStatus
	err         string
	lastUpdated *time.Time
}

// New returns the initial, idle state.
func New() State {
	return State{status: StatusIdle}
}

// Tasks returns a copy of the cached tasks in cache order.
func (s State) Tasks() []models.Task {
	return slices.Clone(s.tasks)
}

// Len returns the number of cached tasks.
func (s State) Len() int {
	return len(s.tasks)
}

// Status returns the fetch status.
func (s State) Status() SyncStatus {
	return s.status
}

// Err returns the last recorded error message, or "" if none.
func (s State) Err() string {
	return s.err
}

// LastUpdated returns the time of the last successful mutation or fetch.
func (s State) LastUpdated() (time.Time, bool) {
	if s.lastUpdated == nil {
		return time.Time{}, false
	}
	return *s.lastUpdated, true
}

// Get looks up a task by id.
func (s State) Get(id string) (models.Task, bool) {
	i := s.index(id)
	if i < 0 {
		return models.Task{}, false
	}
	return s.tasks[i], true
}

func (s State) index(id string) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

// ReplaceAll overwrites the task set after a successful full fetch. Duplicate
// ids in the input keep their first occurrence.
func (s State) ReplaceAll(tasks []models.Task, at time.Time) State {
	seen := make(map[string]struct{}, len(tasks))
	next := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		next = append(next, t)
	}
	s.tasks = next
	s.status = StatusSucceeded
	s.err = ""
	s.lastUpdated = &at
	return s
}

// Insert appends t unless a task with the same id is already cached.
func (s State) Insert(t models.Task) State {
	if s.index(t.ID) >= 0 {
		return s
	}
	next := make([]models.Task, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	s.tasks = append(next, t)
	return s
}

// Patch merges changes into the task with the given id.
func (s State) Patch(id string, changes models.TaskUpdate) State {
	i := s.index(id)
	if i < 0 {
		return s
	}
	next := slices.Clone(s.tasks)
	next[i] = changes.Apply(next[i])
	s.tasks = next
	return s
}

// Remove drops the task with the given id.
func (s State) Remove(id string) State {
	i := s.index(id)
	if i < 0 {
		return s
	}
	next := make([]models.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	s.tasks = append(next, s.tasks[i+1:]...)
	return s
}

// Touch records a successful mutation at the given time.
func (s State) Touch(at time.Time) State {
	s.lastUpdated = &at
	return s
}

// RecordError stores msg as the last error without touching the fetch status.
func (s State) RecordError(msg string) State {
	s.err = msg
	return s
}

// BeginFetch moves the fetch status to loading.
func (s State) BeginFetch() (State, error) {
	return s.transition(StatusLoading)
}

// FailFetch marks the in-flight fetch as failed. Cached tasks are kept.
func (s State) FailFetch(msg string) (State, error) {
	next, err := s.transition(StatusFailed)
	if err != nil {
		return s, err
	}
	next.err = msg
	return next, nil
}

// CompleteFetch is ReplaceAll guarded by the fetch state machine.
func (s State) CompleteFetch(tasks []models.Task, at time.Time) (State, error) {
	if _, err := s.transition(StatusSucceeded); err != nil {
		return s, err
	}
	return s.ReplaceAll(tasks, at), nil
}

func (s State) transition(to SyncStatus) (State, error) {
	if !CanTransition(s.status, to) {
		return s, fmt.Errorf("illegal sync status transition %s -> %s", s.status, to)
	}
	s.status = to
	return s, nil
}
