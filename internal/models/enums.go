package models

import "slices"

// Category classifies the kind of work a task represents.
type Category string

const (
	CategoryBug           Category = "Bug"
	CategoryFeature       Category = "Feature"
	CategoryDocumentation Category = "Documentation"
	CategoryRefactor      Category = "Refactor"
	CategoryTest          Category = "Test"
)

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{CategoryBug, CategoryFeature, CategoryDocumentation, CategoryRefactor, CategoryTest}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories(), c)
}

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses returns every status in workflow order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses(), s)
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities returns every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return slices.Contains(Priorities(), p)
}
