package model

import (
	"fmt"
	"sort"
)

// TaskStatus names the column a task lives in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Statuses returns every status of a board in lock order.
func Statuses() []TaskStatus {
	return SortStatuses([]TaskStatus{StatusTodo, StatusInProgress, StatusCompleted})
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ParseStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// SortStatuses de-duplicates and orders statuses lexicographically.
// Every transaction that locks more than one column locks them in this order.
func SortStatuses(statuses []TaskStatus) []TaskStatus {
	seen := make(map[TaskStatus]struct{}, len(statuses))
	out := make([]TaskStatus, 0, len(statuses))
	for _, s := range statuses {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TaskPriority is informational and never affects ordering.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
