package archive

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/types"
)

// JarToolArchiver delegates to an external jar command
type JarToolArchiver struct {
	command string
	logger  logger.Logger
}

// NewJarToolArchiver resolves command on PATH. An unresolvable command is
// ErrArchiverUnavailable.
func NewJarToolArchiver(command string, log logger.Logger) (*JarToolArchiver, error) {
	if command == "" {
		command = types.DefaultJarCommand
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: can not find the command %s: %v", ErrArchiverUnavailable, command, err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &JarToolArchiver{command: resolved, logger: log.WithTarget("jar")}, nil
}

// CreateArgs returns the jar arguments for the create phase
func CreateArgs(opts CreateOptions) []string {
	args := []string{"--create", "--file", opts.ArchivePath}
	if opts.MainClass != "" {
		args = append(args, "--main-class", opts.MainClass)
	}
	return append(args, "-C", opts.SourceDir, ".")
}

// UpdateArgs returns the jar arguments for one update phase
func UpdateArgs(archivePath, dir string) []string {
	return []string{"--update", "--file", archivePath, "-C", dir, "."}
}

// Create runs jar --create
func (j *JarToolArchiver) Create(ctx context.Context, opts CreateOptions) error {
	return j.run(ctx, CreateArgs(opts))
}

// Update runs jar --update
func (j *JarToolArchiver) Update(ctx context.Context, archivePath, dir string) error {
	return j.run(ctx, UpdateArgs(archivePath, dir))
}

func (j *JarToolArchiver) run(ctx context.Context, args []string) error {
	j.logger.Debug("jar " + strings.Join(args, " "))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, j.command, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("jar %s: %w\n%s", args[0], err, output.String())
	}
	if output.Len() > 0 {
		j.logger.Debug("jar output", logger.WithField("output", output.String()))
	}
	return nil
}
