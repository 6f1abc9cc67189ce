package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

// PositionStore is the transactional task table the ordering service writes through.
type PositionStore interface {
	// Transaction runs fn inside one database transaction. fn receives a store
	// bound to that transaction; any error rolls everything back.
	Transaction(ctx context.Context, fn func(tx PositionStore) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.Task, error)
	LockColumns(ctx context.Context, boardID uuid.UUID, statuses ...model.TaskStatus) (ordering.Snapshot, error)
	Create(ctx context.Context, task *model.Task) error
	UpdateFields(ctx context.Context, task *model.Task) error
	ApplyPlan(ctx context.Context, boardID uuid.UUID, plan ordering.Plan) error
}

var _ PositionStore = (*TaskRepository)(nil)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Transaction(ctx context.Context, fn func(tx PositionStore) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepository{db: tx})
	})
	// The position constraint is deferred, so a duplicate slot surfaces at commit.
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrPositionConflict, err)
	}
	return err
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// ListByBoard retrieves every task of a board ordered by column and position
func (r *TaskRepository) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	result := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("status").
		Order("position").
		Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

type slotRow struct {
	ID       uuid.UUID
	Position int
}

// LockColumns locks the given columns of a board in lexicographic status order
// and returns their current content. Must be called inside Transaction.
func (r *TaskRepository) LockColumns(ctx context.Context, boardID uuid.UUID, statuses ...model.TaskStatus) (ordering.Snapshot, error) {
	statuses = model.SortStatuses(statuses)
	db := r.db.WithContext(ctx)

	// Row locks cannot cover an empty column, so the column itself is locked first.
	for _, status := range statuses {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", columnLockKey(boardID, status)).Error; err != nil {
			return nil, err
		}
	}

	snap := make(ordering.Snapshot, len(statuses))
	for _, status := range statuses {
		var rows []slotRow
		err := db.Model(&model.Task{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "position").
			Where("board_id = ? AND status = ?", boardID, status).
			Order("position").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}

		col := ordering.Column{Status: status, Slots: make([]ordering.Slot, len(rows))}
		for i, row := range rows {
			col.Slots[i] = ordering.Slot{TaskID: row.ID, Position: row.Position}
		}
		snap[status] = col
	}
	return snap, nil
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// UpdateFields writes the descriptive fields of a task. Status and position
// only change through ApplyPlan.
func (r *TaskRepository) UpdateFields(ctx context.Context, task *model.Task) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"priority":    task.Priority,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ApplyPlan writes an ordering plan: removals, then range shifts, then placements.
func (r *TaskRepository) ApplyPlan(ctx context.Context, boardID uuid.UUID, plan ordering.Plan) error {
	db := r.db.WithContext(ctx)

	for _, id := range plan.Removals {
		result := db.Where("board_id = ?", boardID).Delete(&model.Task{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}
	}

	for _, shift := range plan.Shifts {
		query := db.Model(&model.Task{}).
			Where("board_id = ? AND status = ? AND position >= ?", boardID, shift.Status, shift.From)
		if shift.To != ordering.Unbounded {
			query = query.Where("position <= ?", shift.To)
		}
		if shift.Exclude != uuid.Nil {
			query = query.Where("id <> ?", shift.Exclude)
		}
		if err := query.Update("position", gorm.Expr("position + ?", shift.Delta)).Error; err != nil {
			return err
		}
	}

	for _, p := range plan.Placements {
		result := db.Model(&model.Task{}).
			Where("id = ? AND board_id = ?", p.TaskID, boardID).
			Updates(map[string]interface{}{
				"status":   p.Status,
				"position": p.Position,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}
	}
	return nil
}

func columnLockKey(boardID uuid.UUID, status model.TaskStatus) string {
	return boardID.String() + ":" + string(status)
}
