// Package view derives filtered and sorted projections of cached tasks.
// Nothing here is stored: every call recomputes its output from its inputs.
package view

import (
	"cmp"
	"fmt"
	"slices"

	"tasksync/internal/models"
)

// Criteria selects the sort key.
type Criteria string

const (
	ByNone      Criteria = "none"
	ByCreatedAt Criteria = "createdAt"
	ByPriority  Criteria = "priority"
	ByStatus    Criteria = "status"
)

// Order selects the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Filter constrains a projection. An empty field means no constraint.
type Filter struct {
	Category models.Category
	Status   models.Status
	Priority models.Priority
}

// IsZero reports whether the filter has no constraints.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether t satisfies every non-empty field of f exactly.
func (f Filter) Match(t models.Task) bool {
	return (f.Category == "" || f.Category == t.Category) &&
		(f.Status == "" || f.Status == t.Status) &&
		(f.Priority == "" || f.Priority == t.Priority)
}

// Sort describes how a projection is ordered.
type Sort struct {
	Criteria Criteria
	Order    Order
}

var (
	priorityRank = map[models.Priority]int{
		models.PriorityHigh:   3,
		models.PriorityMedium: 2,
		models.PriorityLow:    1,
	}

	// Done ranks highest. This is not workflow order and is kept on purpose.
	statusRank = map[models.Status]int{
		models.StatusDone:       3,
		models.StatusInProgress: 2,
		models.StatusTodo:       1,
	}
)

func init() {
	if err := checkTotal(priorityRank, models.Priorities()); err != nil {
		panic(err)
	}
	if err := checkTotal(statusRank, models.Statuses()); err != nil {
		panic(err)
	}
}

func checkTotal[K comparable](ranks map[K]int, domain []K) error {
	for _, k := range domain {
		if _, ok := ranks[k]; !ok {
			return fmt.Errorf("view: no rank for %v", k)
		}
	}
	return nil
}

// Apply returns the tasks matching f. The input is never modified.
func (f Filter) Apply(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Apply returns a stably sorted copy of tasks.
func (s Sort) Apply(tasks []models.Task) []models.Task {
	out := slices.Clone(tasks)
	key := s.key()
	if key == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b models.Task) int {
		if s.Order == Desc {
			return cmp.Compare(key(b), key(a))
		}
		return cmp.Compare(key(a), key(b))
	})
	return out
}

func (s Sort) key() func(models.Task) int64 {
	switch s.Criteria {
	case ByCreatedAt:
		return func(t models.Task) int64 { return t.CreatedAt.UnixNano() }
	case ByPriority:
		return func(t models.Task) int64 { return int64(priorityRank[t.Priority]) }
	case ByStatus:
		return func(t models.Task) int64 { return int64(statusRank[t.Status]) }
	default:
		return nil
	}
}

// Project filters then sorts tasks.
func Project(tasks []models.Task, f Filter, s Sort) []models.Task {
	return s.Apply(f.Apply(tasks))
}

// ParseCriteria parses a sort criteria name. Empty means ByNone.
func ParseCriteria(v string) (Criteria, error) {
	switch c := Criteria(v); c {
	case "":
		return ByNone, nil
	case ByNone, ByCreatedAt, ByPriority, ByStatus:
		return c, nil
	default:
		return "", fmt.Errorf("unknown sort criteria %q", v)
	}
}

// ParseOrder parses a sort order. Empty means Asc.
func ParseOrder(v string) (Order, error) {
	switch o := Order(v); o {
	case "":
		return Asc, nil
	case Asc, Desc:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", v)
	}
}
