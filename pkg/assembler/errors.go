package assembler

import (
	"errors"
	"fmt"

	"github.com/uberpack/uberpack/pkg/types"
)

// Error categories. Every run failure matches exactly one with errors.Is.
var (
	// ErrEnvironment: the launcher cannot be resolved or the archiving
	// backend is unavailable. Raised before any output is touched.
	ErrEnvironment = errors.New("environment error")

	// ErrFilesystem: staging, bootstrap copy or manifest write failed
	ErrFilesystem = errors.New("filesystem error")

	// ErrArchive: the create or an update phase failed; the archive must be
	// discarded
	ErrArchive = errors.New("archiving error")

	// ErrInvalidTransition indicates a bug in the run sequence
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRunInProgress is returned when Run is called concurrently on one
	// assembler
	ErrRunInProgress = errors.New("assembler run already in progress")
)

// RunError reports the state a run failed in along with its category
type RunError struct {
	State types.RunState
	Kind  error
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s after %s: %v", e.Kind, e.State, e.Err)
}

// Unwrap exposes both the category and the cause to errors.Is
func (e *RunError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
