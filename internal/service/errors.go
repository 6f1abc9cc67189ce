package service

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/ordering"
	"taskboard/internal/repository"
)

// Error kinds returned by TaskService. Callers compare with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrValidation   = errors.New("validation failed")
	ErrInternal     = errors.New("internal error")
)

// classify maps lower layer errors onto the service error kinds. Errors it
// does not recognise are storage failures and stay eligible for a retry.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied), errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, repository.ErrTaskNotFound),
		errors.Is(err, repository.ErrBoardNotFound),
		errors.Is(err, ordering.ErrUnknownTask):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, ordering.ErrInvalidPosition),
		errors.Is(err, ordering.ErrInvalidStatus),
		errors.Is(err, ordering.ErrDuplicateTask),
		errors.Is(err, ordering.ErrNonDenseBatch):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrAccessDenied) &&
		!errors.Is(err, ErrValidation)
}
