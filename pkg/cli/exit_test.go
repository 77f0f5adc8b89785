package cli_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/uberpack/uberpack/pkg/assembler"
	"github.com/uberpack/uberpack/pkg/cli"
	"github.com/uberpack/uberpack/pkg/types"
)

func TestExitCode(t *testing.T) {
	wrap := func(kind error) error {
		return fmt.Errorf("packaging failed: %w", &assembler.RunError{
			State: types.RunStateCreated, Kind: kind, Err: errors.New("cause"),
		})
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, cli.ExitOK},
		{"environment", wrap(assembler.ErrEnvironment), cli.ExitEnvironment},
		{"filesystem", wrap(assembler.ErrFilesystem), cli.ExitFilesystem},
		{"archive", wrap(assembler.ErrArchive), cli.ExitArchive},
		{"other", errors.New("bad flag"), cli.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cli.ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPackage_MissingInputExitCode(t *testing.T) {
	root := newProject(t)
	writeConfigDeps(t, root, "deps", "nowhere")

	_, _, err := run(t, root, "package")
	if got := cli.ExitCode(err); got != cli.ExitFilesystem {
		t.Errorf("expected filesystem exit code, got %d (%v)", got, err)
	}
}
