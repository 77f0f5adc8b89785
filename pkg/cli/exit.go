package cli

import (
	"errors"

	"github.com/uberpack/uberpack/pkg/assembler"
)

// Process exit codes. Anything but a committed archive exits non-zero.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitEnvironment = 2
	ExitFilesystem  = 3
	ExitArchive     = 4
)

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, assembler.ErrEnvironment):
		return ExitEnvironment
	case errors.Is(err, assembler.ErrFilesystem):
		return ExitFilesystem
	case errors.Is(err, assembler.ErrArchive):
		return ExitArchive
	default:
		return ExitFailure
	}
}
