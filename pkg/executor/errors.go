package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrShellNotFound is returned when the configured shell cannot be resolved
	ErrShellNotFound = errors.New("shell not found")

	// ErrInvalidWorkingDir is returned when the working directory is not a directory
	ErrInvalidWorkingDir = errors.New("invalid working directory")
)

// ExitError reports a command that ran and exited with a non-zero status
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
