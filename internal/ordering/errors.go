package ordering

import "errors"

var (
	// Input errors. The caller sent something that can never be applied.
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrDuplicateTask   = errors.New("task appears more than once in batch")
	ErrNonDenseBatch   = errors.New("batch leaves column positions with gaps or duplicates")

	// ErrUnknownTask is returned when a batch names a task that is not on the board.
	ErrUnknownTask = errors.New("task not on board")

	// ErrTaskNotInColumn means the snapshot handed to the engine no longer
	// matches what the caller believed about the task; reread and retry.
	ErrTaskNotInColumn = errors.New("task not found at expected position")

	ErrNotDense = errors.New("column positions are not dense")
)
