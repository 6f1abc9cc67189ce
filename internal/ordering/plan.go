package ordering

import (
	"sort"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Unbounded marks a shift without an upper position bound.
const Unbounded = -1

// Slot is one task's place in a column.
type Slot struct {
	TaskID   uuid.UUID
	Position int
}

// Column is the ordered content of one (board, status) pair, ascending by position.
type Column struct {
	Status model.TaskStatus
	Slots  []Slot
}

func (c Column) Len() int {
	return len(c.Slots)
}

func (c Column) positionOf(taskID uuid.UUID) (int, bool) {
	for _, s := range c.Slots {
		if s.TaskID == taskID {
			return s.Position, true
		}
	}
	return 0, false
}

// maxPosition returns -1 for an empty column.
func (c Column) maxPosition() int {
	max := -1
	for _, s := range c.Slots {
		if s.Position > max {
			max = s.Position
		}
	}
	return max
}

// Snapshot holds the columns of a single board keyed by status.
type Snapshot map[model.TaskStatus]Column

// Column returns the column for status, empty when the board has no task in it.
func (s Snapshot) Column(status model.TaskStatus) Column {
	if col, ok := s[status]; ok {
		col.Status = status
		return col
	}
	return Column{Status: status}
}

// Locate finds the column and position currently held by taskID.
func (s Snapshot) Locate(taskID uuid.UUID) (model.TaskStatus, int, bool) {
	for status, col := range s {
		if pos, ok := col.positionOf(taskID); ok {
			return status, pos, true
		}
	}
	return "", 0, false
}

// Shift moves every task of a column whose position lies in [From, To] by Delta.
// Exclude is never shifted; it is the task being moved or inserted.
type Shift struct {
	Status  model.TaskStatus
	From    int
	To      int
	Delta   int
	Exclude uuid.UUID
}

func (s Shift) covers(pos int) bool {
	return pos >= s.From && (s.To == Unbounded || pos <= s.To)
}

// Placement is the final slot of a task the plan moves.
type Placement struct {
	TaskID   uuid.UUID
	Status   model.TaskStatus
	Position int
}

// Plan is the write set of one ordering operation. Removals are applied first,
// then shifts, then placements.
type Plan struct {
	Removals   []uuid.UUID
	Shifts     []Shift
	Placements []Placement
}

func (p Plan) Empty() bool {
	return len(p.Removals) == 0 && len(p.Shifts) == 0 && len(p.Placements) == 0
}

// Change is a single row whose (status, position) a plan modifies.
type Change struct {
	TaskID   uuid.UUID
	Status   model.TaskStatus
	Position int
}

// Apply simulates p against snap and returns the resulting board. snap is not modified.
func (p Plan) Apply(snap Snapshot) Snapshot {
	removed := make(map[uuid.UUID]struct{}, len(p.Removals))
	for _, id := range p.Removals {
		removed[id] = struct{}{}
	}

	out := make(Snapshot, len(snap))
	for status, col := range snap {
		slots := make([]Slot, 0, len(col.Slots))
		for _, s := range col.Slots {
			if _, gone := removed[s.TaskID]; !gone {
				slots = append(slots, s)
			}
		}
		out[status] = Column{Status: status, Slots: slots}
	}

	for _, sh := range p.Shifts {
		col, ok := out[sh.Status]
		if !ok {
			continue
		}
		for i := range col.Slots {
			if col.Slots[i].TaskID != sh.Exclude && sh.covers(col.Slots[i].Position) {
				col.Slots[i].Position += sh.Delta
			}
		}
	}

	for _, pl := range p.Placements {
		for status, col := range out {
			for i, s := range col.Slots {
				if s.TaskID == pl.TaskID {
					col.Slots = append(col.Slots[:i:i], col.Slots[i+1:]...)
					out[status] = col
					break
				}
			}
		}
		dest := out.Column(pl.Status)
		dest.Slots = append(dest.Slots, Slot{TaskID: pl.TaskID, Position: pl.Position})
		out[pl.Status] = dest
	}

	for status, col := range out {
		sort.SliceStable(col.Slots, func(i, j int) bool { return col.Slots[i].Position < col.Slots[j].Position })
		out[status] = col
	}
	return out
}

// Changes lists every surviving task whose status or position differs after
// applying p, sorted by status then position.
func (p Plan) Changes(snap Snapshot) []Change {
	before := make(map[uuid.UUID]Change)
	for status, col := range snap {
		for _, s := range col.Slots {
			before[s.TaskID] = Change{TaskID: s.TaskID, Status: status, Position: s.Position}
		}
	}

	var changes []Change
	for status, col := range p.Apply(snap) {
		for _, s := range col.Slots {
			after := Change{TaskID: s.TaskID, Status: status, Position: s.Position}
			if prev, ok := before[s.TaskID]; !ok || prev != after {
				changes = append(changes, after)
			}
		}
	}
	sortChanges(changes)
	return changes
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Status != changes[j].Status {
			return changes[i].Status < changes[j].Status
		}
		return changes[i].Position < changes[j].Position
	})
}
