package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is matched by every local validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Task represents a single tracked task.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category   `json:"category" yaml:"category"`
	Status      Status     `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// AsUpdate returns a TaskUpdate carrying every mutable field of t.
// Patching a cached task with it replaces the record with t.
func (t Task) AsUpdate() TaskUpdate {
	u := TaskUpdate{
		Title:       &t.Title,
		Description: &t.Description,
		Category:    &t.Category,
		Status:      &t.Status,
		Priority:    &t.Priority,
	}
	if t.UpdatedAt != nil {
		ts := *t.UpdatedAt
		u.UpdatedAt = &ts
	}
	return u
}

// NewTask is the payload for creating a task. The server assigns id and timestamps.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
}

// Validate checks that the payload has every required field set to a known value.
func (n NewTask) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if n.Category == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if !n.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("must be one of %s", joinValues(Categories()))}
	}
	if n.Status == "" {
		return &ValidationError{Field: "status", Reason: "is required"}
	}
	if !n.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %s", joinValues(Statuses()))}
	}
	if n.Priority == "" {
		return &ValidationError{Field: "priority", Reason: "is required"}
	}
	if !n.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", joinValues(Priorities()))}
	}
	return nil
}

// TaskUpdate is a partial set of changes. Nil fields are left untouched.
// ID and CreatedAt are immutable and therefore absent.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Category    *Category  `json:"category,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// IsZero reports whether the update carries no changes.
func (u TaskUpdate) IsZero() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.Status == nil && u.Priority == nil && u.UpdatedAt == nil
}

// Validate checks the fields that are present.
func (u TaskUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if u.Category != nil && !u.Category.Valid() {
		return &ValidationError{Field: "category", Reason: fmt.Sprintf("must be one of %s", joinValues(Categories()))}
	}
	if u.Status != nil && !u.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("must be one of %s", joinValues(Statuses()))}
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must be one of %s", joinValues(Priorities()))}
	}
	return nil
}

// Apply returns a copy of t with the changes merged in.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.UpdatedAt != nil {
		ts := *u.UpdatedAt
		t.UpdatedAt = &ts
	}
	return t
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(parts, ", ")
}
