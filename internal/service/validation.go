package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

// CreateTaskInput carries the fields accepted when creating a task.
// Position nil appends the task to the end of its column.
type CreateTaskInput struct {
	Title       string             `validate:"required,max=255"`
	Description string             `validate:"max=10000"`
	Status      model.TaskStatus   `validate:"omitempty,task_status"`
	Priority    model.TaskPriority `validate:"omitempty,task_priority"`
	Position    *int               `validate:"omitempty,min=0"`
}

// TaskPatch is the closed set of fields an update may change. Nil fields are left alone.
type TaskPatch struct {
	Title       *string             `validate:"omitempty,min=1,max=255"`
	Description *string             `validate:"omitempty,max=10000"`
	Status      *model.TaskStatus   `validate:"omitempty,task_status"`
	Priority    *model.TaskPriority `validate:"omitempty,task_priority"`
	Position    *int                `validate:"omitempty,min=0"`
}

func (p TaskPatch) movesTask() bool {
	return p.Status != nil || p.Position != nil
}

func (p TaskPatch) editsFields() bool {
	return p.Title != nil || p.Description != nil || p.Priority != nil
}

type moveInput struct {
	Status   model.TaskStatus `validate:"required,task_status"`
	Position int              `validate:"min=0"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return model.TaskStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
		return model.TaskPriority(fl.Field().String()).Valid()
	})
	return v
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func (s *TaskService) validateCreate(in *CreateTaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	return nil
}

func (s *TaskService) validatePatch(p *TaskPatch) error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		if trimmed == "" {
			return validationError(fmt.Errorf("title must not be empty"))
		}
		p.Title = &trimmed
	}
	// omitempty skips the enum checks for pointers to empty strings
	if p.Status != nil && !p.Status.Valid() {
		return validationError(fmt.Errorf("unknown task status %q", *p.Status))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return validationError(fmt.Errorf("unknown task priority %q", *p.Priority))
	}
	if err := s.validate.Struct(p); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *TaskService) validateBatch(updates []ordering.Update) error {
	for _, u := range updates {
		if u.TaskID == uuid.Nil {
			return validationError(fmt.Errorf("batch entry without task id"))
		}
		if err := s.validate.Struct(moveInput{Status: u.Status, Position: u.Position}); err != nil {
			return validationError(err)
		}
	}
	return nil
}
