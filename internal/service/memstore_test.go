package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
	"taskboard/internal/repository"
)

// memStore is an in-memory PositionStore. Transactions are serialised and
// work on a copy that is only published when fn succeeds.
type memStore struct {
	mu          sync.Mutex
	tasks       map[uuid.UUID]model.Task
	failCommits int
	txCount     int
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uuid.UUID]model.Task)}
}

var errSerialization = errors.New("could not serialize access due to concurrent update")

func (m *memStore) Transaction(ctx context.Context, fn func(tx repository.PositionStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCount++
	tx := &memTx{tasks: make(map[uuid.UUID]model.Task, len(m.tasks))}
	for id, t := range m.tasks {
		tx.tasks[id] = t
	}
	if err := fn(tx); err != nil {
		return err
	}
	if m.failCommits > 0 {
		m.failCommits--
		return errSerialization
	}
	m.tasks = tx.tasks
	return nil
}

func (m *memStore) view() *memTx {
	return &memTx{tasks: m.tasks}
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetByID(ctx, id)
}

func (m *memStore) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListByBoard(ctx, boardID)
}

func (m *memStore) LockColumns(ctx context.Context, boardID uuid.UUID, statuses ...model.TaskStatus) (ordering.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().LockColumns(ctx, boardID, statuses...)
}

func (m *memStore) Create(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().Create(ctx, task)
}

func (m *memStore) UpdateFields(ctx context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().UpdateFields(ctx, task)
}

func (m *memStore) ApplyPlan(ctx context.Context, boardID uuid.UUID, plan ordering.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ApplyPlan(ctx, boardID, plan)
}

// seed inserts tasks directly, bypassing the service.
func (m *memStore) seed(boardID uuid.UUID, status model.TaskStatus, titles ...string) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uuid.UUID, len(titles))
	for i, title := range titles {
		ids[i] = uuid.New()
		m.tasks[ids[i]] = model.Task{
			ID:       ids[i],
			BoardID:  boardID,
			Title:    title,
			Status:   status,
			Priority: model.PriorityMedium,
			Position: i,
		}
	}
	return ids
}

// column returns task titles of one column ordered by position.
func (m *memStore) column(boardID uuid.UUID, status model.TaskStatus) []string {
	tasks, _ := m.ListByBoard(context.Background(), boardID)
	var titles []string
	for _, t := range tasks {
		if t.Status == status {
			titles = append(titles, t.Title)
		}
	}
	return titles
}

func (m *memStore) position(id uuid.UUID) (model.TaskStatus, int) {
	t, err := m.GetByID(context.Background(), id)
	if err != nil {
		return "", -1
	}
	return t.Status, t.Position
}

type memTx struct {
	tasks map[uuid.UUID]model.Task
}

func (t *memTx) Transaction(ctx context.Context, fn func(tx repository.PositionStore) error) error {
	return fn(t)
}

func (t *memTx) GetByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	task, ok := t.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return &task, nil
}

func (t *memTx) ListByBoard(_ context.Context, boardID uuid.UUID) ([]model.Task, error) {
	var out []model.Task
	for _, task := range t.tasks {
		if task.BoardID == boardID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (t *memTx) LockColumns(_ context.Context, boardID uuid.UUID, statuses ...model.TaskStatus) (ordering.Snapshot, error) {
	snap := make(ordering.Snapshot)
	for _, status := range model.SortStatuses(statuses) {
		col := ordering.Column{Status: status}
		for _, task := range t.tasks {
			if task.BoardID == boardID && task.Status == status {
				col.Slots = append(col.Slots, ordering.Slot{TaskID: task.ID, Position: task.Position})
			}
		}
		sort.Slice(col.Slots, func(i, j int) bool { return col.Slots[i].Position < col.Slots[j].Position })
		snap[status] = col
	}
	return snap, nil
}

func (t *memTx) Create(_ context.Context, task *model.Task) error {
	now := time.Now()
	task.CreatedAt, task.UpdatedAt = now, now
	t.tasks[task.ID] = *task
	return nil
}

func (t *memTx) UpdateFields(_ context.Context, task *model.Task) error {
	stored, ok := t.tasks[task.ID]
	if !ok {
		return repository.ErrTaskNotFound
	}
	stored.Title = task.Title
	stored.Description = task.Description
	stored.Priority = task.Priority
	stored.UpdatedAt = time.Now()
	t.tasks[task.ID] = stored
	return nil
}

func (t *memTx) ApplyPlan(_ context.Context, boardID uuid.UUID, plan ordering.Plan) error {
	for _, id := range plan.Removals {
		task, ok := t.tasks[id]
		if !ok || task.BoardID != boardID {
			return repository.ErrTaskNotFound
		}
		delete(t.tasks, id)
	}
	for _, sh := range plan.Shifts {
		for id, task := range t.tasks {
			if task.BoardID != boardID || task.Status != sh.Status || id == sh.Exclude {
				continue
			}
			if task.Position >= sh.From && (sh.To == ordering.Unbounded || task.Position <= sh.To) {
				task.Position += sh.Delta
				t.tasks[id] = task
			}
		}
	}
	for _, p := range plan.Placements {
		task, ok := t.tasks[p.TaskID]
		if !ok || task.BoardID != boardID {
			return repository.ErrTaskNotFound
		}
		task.Status = p.Status
		task.Position = p.Position
		t.tasks[p.TaskID] = task
	}
	return nil
}

// boardDirectory is an in-memory board ownership lookup.
type boardDirectory struct {
	owners map[uuid.UUID]uuid.UUID
}

func (b *boardDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := b.owners[id]
	return ok, nil
}

func (b *boardDirectory) Owner(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	owner, ok := b.owners[id]
	if !ok {
		return uuid.Nil, repository.ErrBoardNotFound
	}
	return owner, nil
}

// staleStore answers the first in-transaction read of taskID with an outdated
// status, as if another transaction moved the task right after it was read.
type staleStore struct {
	*memStore
	taskID uuid.UUID
	status model.TaskStatus
	served bool
}

func (s *staleStore) Transaction(ctx context.Context, fn func(tx repository.PositionStore) error) error {
	return s.memStore.Transaction(ctx, func(tx repository.PositionStore) error {
		return fn(&staleTx{PositionStore: tx, store: s})
	})
}

type staleTx struct {
	repository.PositionStore
	store *staleStore
}

func (t *staleTx) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := t.PositionStore.GetByID(ctx, id)
	if err == nil && id == t.store.taskID && !t.store.served {
		t.store.served = true
		task.Status = t.store.status
	}
	return task, err
}
