// Package archive builds the uber-archive: one create pass over the staging
// directory followed by one update pass per module path directory.
package archive

import (
	"context"
	"errors"
)

var (
	// ErrArchiving wraps any failure of the underlying archiving backend
	ErrArchiving = errors.New("archiving failed")

	// ErrArchiverUnavailable means the configured backend cannot run here
	ErrArchiverUnavailable = errors.New("archiver unavailable")

	// ErrNotCreated is returned when an update is attempted before the
	// create phase completed for the same archive
	ErrNotCreated = errors.New("archive not created")

	// ErrSessionClosed is returned by a session that failed, was committed
	// or was aborted
	ErrSessionClosed = errors.New("archive session closed")
)

// CreateOptions describes the create phase
type CreateOptions struct {
	// ArchivePath is the file to create; an existing file is replaced
	ArchivePath string
	// SourceDir is included recursively as the archive's initial contents
	SourceDir string
	// MainClass is recorded as the archive's entry point
	MainClass string
}

//go:generate mockgen -destination=../mocks/archiver.go -package=mocks github.com/uberpack/uberpack/pkg/archive Archiver

// Archiver is the archiving backend. Implementations are injected into the
// Builder so tests can substitute a fake.
type Archiver interface {
	// Create writes a brand-new archive whose contents are exactly
	// opts.SourceDir.
	Create(ctx context.Context, opts CreateOptions) error
	// Update layers the contents of dir over an existing archive. Entries
	// at the same path are overwritten; new entries are added.
	Update(ctx context.Context, archivePath, dir string) error
}
