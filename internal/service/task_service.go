// Package service orders tasks on a board. It checks board ownership, runs the
// ordering engine against freshly locked columns and writes the resulting plan
// in a single transaction.
package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
	"taskboard/internal/repository"
)

// TaskListCache serves board task listings. Invalidate is called after every
// committed change to a board.
type TaskListCache interface {
	Get(ctx context.Context, boardID uuid.UUID, load func(context.Context) ([]model.Task, error)) ([]model.Task, error)
	Invalidate(ctx context.Context, boardID uuid.UUID)
}

type TaskService struct {
	tasks    repository.PositionStore
	boards   repository.BoardRepositoryInterface
	cache    TaskListCache
	validate *validator.Validate
}

// NewTaskService wires the service. A nil cache reads straight from the store.
func NewTaskService(tasks repository.PositionStore, boards repository.BoardRepositoryInterface, cache TaskListCache) *TaskService {
	if cache == nil {
		cache = noCache{}
	}
	return &TaskService{
		tasks:    tasks,
		boards:   boards,
		cache:    cache,
		validate: newValidator(),
	}
}

// CreateTask adds a task to boardID. Without a position the task goes to the
// end of its column.
func (s *TaskService) CreateTask(ctx context.Context, userID, boardID uuid.UUID, in CreateTaskInput) (*model.Task, error) {
	if err := s.validateCreate(&in); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, boardID, userID); err != nil {
		return nil, err
	}

	var created *model.Task
	err := s.inTx(ctx, "create task", func(tx repository.PositionStore) error {
		snap, err := tx.LockColumns(ctx, boardID, in.Status)
		if err != nil {
			return err
		}
		plan, pos, err := ordering.Insert(snap.Column(in.Status), in.Position)
		if err != nil {
			return classify(err)
		}
		if err := tx.ApplyPlan(ctx, boardID, plan); err != nil {
			return classify(err)
		}

		task := &model.Task{
			ID:          uuid.New(),
			BoardID:     boardID,
			Title:       in.Title,
			Description: in.Description,
			Status:      in.Status,
			Priority:    in.Priority,
			Position:    pos,
		}
		if err := tx.Create(ctx, task); err != nil {
			return err
		}
		created = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "create", boardID, created.ID)
	return created, nil
}

// UpdateTask applies a patch. A status change without a position appends the
// task to the destination column.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID uuid.UUID, patch TaskPatch) (*model.Task, error) {
	if err := s.validatePatch(&patch); err != nil {
		return nil, err
	}

	var updated *model.Task
	err := s.inTx(ctx, "update task", func(tx repository.PositionStore) error {
		task, err := s.loadOwned(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}

		if patch.movesTask() {
			status := task.Status
			if patch.Status != nil {
				status = *patch.Status
			}
			if status != task.Status || patch.Position != nil {
				if err := relocate(ctx, tx, task, status, patch.Position); err != nil {
					return err
				}
			}
		}

		if patch.editsFields() {
			if patch.Title != nil {
				task.Title = *patch.Title
			}
			if patch.Description != nil {
				task.Description = *patch.Description
			}
			if patch.Priority != nil {
				task.Priority = *patch.Priority
			}
			if err := tx.UpdateFields(ctx, task); err != nil {
				return classify(err)
			}
		}

		updated, err = tx.GetByID(ctx, taskID)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "update", updated.BoardID, updated.ID)
	return updated, nil
}

// MoveTask puts a task at (status, position). The current slot is always read
// from the locked columns, never from the caller.
func (s *TaskService) MoveTask(ctx context.Context, userID, taskID uuid.UUID, status model.TaskStatus, position int) (*model.Task, error) {
	if err := s.validate.Struct(moveInput{Status: status, Position: position}); err != nil {
		return nil, validationError(err)
	}

	var moved *model.Task
	err := s.inTx(ctx, "move task", func(tx repository.PositionStore) error {
		task, err := s.loadOwned(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if err := relocate(ctx, tx, task, status, &position); err != nil {
			return err
		}
		moved, err = tx.GetByID(ctx, taskID)
		return classify(err)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ctx, "move", moved.BoardID, moved.ID)
	return moved, nil
}

// ReorderBatch writes client supplied final slots for several tasks at once.
// Either every update is written or none is.
func (s *TaskService) ReorderBatch(ctx context.Context, userID, boardID uuid.UUID, updates []ordering.Update) error {
	if err := s.validateBatch(updates); err != nil {
		return err
	}
	if err := s.authorize(ctx, boardID, userID); err != nil {
		return err
	}

	err := s.inTx(ctx, "reorder batch", func(tx repository.PositionStore) error {
		snap, err := tx.LockColumns(ctx, boardID, model.Statuses()...)
		if err != nil {
			return err
		}
		plan, err := ordering.BatchReorder(snap, updates)
		if err != nil {
			return classify(err)
		}
		return classify(tx.ApplyPlan(ctx, boardID, plan))
	})
	if err != nil {
		return err
	}

	s.committed(ctx, "reorder", boardID, uuid.Nil)
	return nil
}

// RemoveTask deletes a task and closes the gap it leaves in its column.
func (s *TaskService) RemoveTask(ctx context.Context, userID, taskID uuid.UUID) error {
	var boardID uuid.UUID
	err := s.inTx(ctx, "remove task", func(tx repository.PositionStore) error {
		task, err := s.loadOwned(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		snap, err := tx.LockColumns(ctx, task.BoardID, task.Status)
		if err != nil {
			return err
		}
		status, pos, ok := snap.Locate(task.ID)
		if !ok || status != task.Status {
			return fmt.Errorf("%w: task %s left %q", ordering.ErrTaskNotInColumn, task.ID, task.Status)
		}
		plan, err := ordering.Remove(snap.Column(status), task.ID, pos)
		if err != nil {
			return classify(err)
		}
		if err := tx.ApplyPlan(ctx, task.BoardID, plan); err != nil {
			return classify(err)
		}
		boardID = task.BoardID
		return nil
	})
	if err != nil {
		return err
	}

	s.committed(ctx, "remove", boardID, taskID)
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.authorize(ctx, task.BoardID, userID); err != nil {
		return nil, err
	}
	return task, nil
}

// ListBoardTasks returns every task of a board ordered by status, then position.
func (s *TaskService) ListBoardTasks(ctx context.Context, userID, boardID uuid.UUID) ([]model.Task, error) {
	if err := s.authorize(ctx, boardID, userID); err != nil {
		return nil, err
	}
	return s.cache.Get(ctx, boardID, func(ctx context.Context) ([]model.Task, error) {
		return s.tasks.ListByBoard(ctx, boardID)
	})
}

// relocate moves task to (status, position) inside tx and updates task in
// place. A nil position appends to a different column and is a no-op within
// the same one.
func relocate(ctx context.Context, tx repository.PositionStore, task *model.Task, status model.TaskStatus, position *int) error {
	snap, err := tx.LockColumns(ctx, task.BoardID, task.Status, status)
	if err != nil {
		return err
	}

	// The task row was read before the lock; a concurrent move may have won.
	current, pos, ok := snap.Locate(task.ID)
	if !ok || current != task.Status {
		return fmt.Errorf("%w: task %s left %q", ordering.ErrTaskNotInColumn, task.ID, task.Status)
	}

	var plan ordering.Plan
	if status == current {
		if position == nil {
			return nil
		}
		plan, err = ordering.MoveWithinColumn(snap.Column(current), task.ID, pos, *position)
	} else {
		to := snap.Column(status)
		target := to.Len()
		if position != nil {
			target = *position
		}
		plan, err = ordering.MoveAcrossColumns(snap.Column(current), pos, to, target, task.ID)
	}
	if err != nil {
		return classify(err)
	}
	if err := tx.ApplyPlan(ctx, task.BoardID, plan); err != nil {
		return classify(err)
	}

	task.Status = status
	task.Position = pos
	if len(plan.Placements) > 0 {
		task.Position = plan.Placements[0].Position
	}
	return nil
}

// loadOwned reads a task and checks that userID owns its board.
func (s *TaskService) loadOwned(ctx context.Context, tx repository.PositionStore, taskID, userID uuid.UUID) (*model.Task, error) {
	task, err := tx.GetByID(ctx, taskID)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.authorize(ctx, task.BoardID, userID); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) authorize(ctx context.Context, boardID, userID uuid.UUID) error {
	exists, err := s.boards.Exists(ctx, boardID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: board %s", ErrNotFound, boardID)
	}

	owner, err := s.boards.Owner(ctx, boardID)
	if err != nil {
		return classify(err)
	}
	if owner != userID {
		return fmt.Errorf("%w: board %s", ErrAccessDenied, boardID)
	}
	return nil
}

// inTx runs fn in a transaction. A storage failure is retried once with fn
// recomputing everything from fresh state; domain errors are returned as is.
func (s *TaskService) inTx(ctx context.Context, op string, fn func(tx repository.PositionStore) error) error {
	err := s.tasks.Transaction(ctx, fn)
	if err == nil || !retryable(ctx, err) {
		return err
	}

	log.WithFields(log.Fields{"op": op, "error": err}).Warn("transaction failed, retrying")
	err = s.tasks.Transaction(ctx, fn)
	if err == nil || !retryable(ctx, err) {
		return err
	}

	log.WithFields(log.Fields{"op": op, "error": err}).Error("transaction failed after retry")
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

func (s *TaskService) committed(ctx context.Context, op string, boardID, taskID uuid.UUID) {
	s.cache.Invalidate(ctx, boardID)

	fields := log.Fields{"op": op, "board_id": boardID}
	if taskID != uuid.Nil {
		fields["task_id"] = taskID
	}
	log.WithFields(fields).Debug("board ordering committed")
}

type noCache struct{}

func (noCache) Get(ctx context.Context, _ uuid.UUID, load func(context.Context) ([]model.Task, error)) ([]model.Task, error) {
	return load(ctx)
}

func (noCache) Invalidate(context.Context, uuid.UUID) {}
