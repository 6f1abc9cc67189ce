// Package ordering computes how task positions reflow when tasks are inserted,
// moved or removed. Every function is pure: it receives column snapshots and
// returns the Plan a store must write to keep each column dense.
package ordering

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Update is one entry of a batch reorder: the final slot of a task.
type Update struct {
	TaskID   uuid.UUID
	Status   model.TaskStatus
	Position int
}

// Insert picks the slot for a new task. Without a requested position the task
// is appended and nothing moves. A requested position inside the column pushes
// every task at or after it down by one; past the end it is clamped to append.
func Insert(col Column, requested *int) (Plan, int, error) {
	if err := checkStatus(col.Status); err != nil {
		return Plan{}, 0, err
	}

	next := col.maxPosition() + 1
	if requested == nil {
		return Plan{}, next, nil
	}

	pos := *requested
	if pos < 0 {
		return Plan{}, 0, fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	if pos >= next {
		return Plan{}, next, nil
	}

	return Plan{
		Shifts: []Shift{{Status: col.Status, From: pos, To: Unbounded, Delta: 1}},
	}, pos, nil
}

// MoveWithinColumn rotates the sub-range between oldPosition and newPosition by
// one. Only tasks strictly between the two slots are touched.
func MoveWithinColumn(col Column, taskID uuid.UUID, oldPosition, newPosition int) (Plan, error) {
	if err := checkStatus(col.Status); err != nil {
		return Plan{}, err
	}
	if newPosition < 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidPosition, newPosition)
	}
	if err := expectAt(col, taskID, oldPosition); err != nil {
		return Plan{}, err
	}

	if last := col.maxPosition(); newPosition > last {
		newPosition = last
	}
	if newPosition == oldPosition {
		return Plan{}, nil
	}

	var shift Shift
	if newPosition > oldPosition {
		shift = Shift{Status: col.Status, From: oldPosition + 1, To: newPosition, Delta: -1, Exclude: taskID}
	} else {
		shift = Shift{Status: col.Status, From: newPosition, To: oldPosition - 1, Delta: 1, Exclude: taskID}
	}

	return Plan{
		Shifts:     []Shift{shift},
		Placements: []Placement{{TaskID: taskID, Status: col.Status, Position: newPosition}},
	}, nil
}

// MoveAcrossColumns closes the gap left in from and opens a slot in to.
// The two shifts touch disjoint columns and never interact.
func MoveAcrossColumns(from Column, fromPosition int, to Column, toPosition int, taskID uuid.UUID) (Plan, error) {
	if from.Status == to.Status {
		return MoveWithinColumn(from, taskID, fromPosition, toPosition)
	}
	if err := checkStatus(from.Status); err != nil {
		return Plan{}, err
	}
	if err := checkStatus(to.Status); err != nil {
		return Plan{}, err
	}
	if toPosition < 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidPosition, toPosition)
	}
	if err := expectAt(from, taskID, fromPosition); err != nil {
		return Plan{}, err
	}

	end := to.maxPosition() + 1
	if toPosition > end {
		toPosition = end
	}

	var plan Plan
	if fromPosition < from.maxPosition() {
		plan.Shifts = append(plan.Shifts, Shift{Status: from.Status, From: fromPosition + 1, To: Unbounded, Delta: -1, Exclude: taskID})
	}
	if toPosition < end {
		plan.Shifts = append(plan.Shifts, Shift{Status: to.Status, From: toPosition, To: Unbounded, Delta: 1, Exclude: taskID})
	}
	plan.Placements = []Placement{{TaskID: taskID, Status: to.Status, Position: toPosition}}
	return plan, nil
}

// Remove deletes the task and compacts the tail of its column.
func Remove(col Column, taskID uuid.UUID, position int) (Plan, error) {
	if err := expectAt(col, taskID, position); err != nil {
		return Plan{}, err
	}

	plan := Plan{Removals: []uuid.UUID{taskID}}
	if position < col.maxPosition() {
		plan.Shifts = []Shift{{Status: col.Status, From: position + 1, To: Unbounded, Delta: -1, Exclude: taskID}}
	}
	return plan, nil
}

// BatchReorder validates a set of final task slots supplied by a client and
// turns it into placements. Updates are a set, not a sequence: tasks not named
// keep their slot, and every column the batch touches must end up dense.
func BatchReorder(snap Snapshot, updates []Update) (Plan, error) {
	if len(updates) == 0 {
		return Plan{}, nil
	}

	moved := make(map[uuid.UUID]struct{}, len(updates))
	touched := make(map[model.TaskStatus]struct{})
	for _, u := range updates {
		if err := checkStatus(u.Status); err != nil {
			return Plan{}, err
		}
		if u.Position < 0 {
			return Plan{}, fmt.Errorf("%w: task %s position %d", ErrInvalidPosition, u.TaskID, u.Position)
		}
		if _, dup := moved[u.TaskID]; dup {
			return Plan{}, fmt.Errorf("%w: %s", ErrDuplicateTask, u.TaskID)
		}
		status, _, ok := snap.Locate(u.TaskID)
		if !ok {
			return Plan{}, fmt.Errorf("%w: %s", ErrUnknownTask, u.TaskID)
		}
		moved[u.TaskID] = struct{}{}
		touched[status] = struct{}{}
		touched[u.Status] = struct{}{}
	}

	final := make(map[model.TaskStatus][]int)
	for status, col := range snap {
		for _, s := range col.Slots {
			if _, ok := moved[s.TaskID]; !ok {
				final[status] = append(final[status], s.Position)
			}
		}
	}
	for _, u := range updates {
		final[u.Status] = append(final[u.Status], u.Position)
	}

	for status := range touched {
		if !dense(final[status]) {
			return Plan{}, fmt.Errorf("%w: column %q", ErrNonDenseBatch, status)
		}
	}

	var plan Plan
	for _, u := range updates {
		status, pos, _ := snap.Locate(u.TaskID)
		if status == u.Status && pos == u.Position {
			continue
		}
		plan.Placements = append(plan.Placements, Placement(u))
	}
	sort.Slice(plan.Placements, func(i, j int) bool {
		a, b := plan.Placements[i], plan.Placements[j]
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		return a.Position < b.Position
	})
	return plan, nil
}

// CheckDense reports ErrNotDense unless col holds exactly positions 0..n-1.
func CheckDense(col Column) error {
	positions := make([]int, len(col.Slots))
	for i, s := range col.Slots {
		positions[i] = s.Position
	}
	if !dense(positions) {
		return fmt.Errorf("%w: column %q", ErrNotDense, col.Status)
	}
	return nil
}

func dense(positions []int) bool {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for i, p := range sorted {
		if p != i {
			return false
		}
	}
	return true
}

func checkStatus(s model.TaskStatus) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}

func expectAt(col Column, taskID uuid.UUID, position int) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	got, ok := col.positionOf(taskID)
	if !ok || got != position {
		return fmt.Errorf("%w: task %s in %q at %d", ErrTaskNotInColumn, taskID, col.Status, position)
	}
	return nil
}
