package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uberpack/uberpack/pkg/logger"
)

// Builder runs the create and update phases against an injected Archiver
type Builder struct {
	archiver Archiver
	logger   logger.Logger
}

// NewBuilder creates a builder
func NewBuilder(archiver Archiver, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Discard()
	}
	return &Builder{archiver: archiver, logger: log.WithTarget("archive")}
}

// Session assembles one archive. It writes to a temporary file next to the
// final path and only renames it into place on Commit, so the final path
// never holds a partially layered archive.
//
// Phases run strictly one after another; the mutex keeps a misbehaving
// caller from interleaving two layers on the same file.
type Session struct {
	builder   *Builder
	finalPath string
	workPath  string
	created   bool
	closed    bool
	layers    int
	mu        sync.Mutex
}

// Begin starts a session for finalPath, creating its directory if needed
func (b *Builder) Begin(finalPath string) (*Session, error) {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory %s: %v", ErrArchiving, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(finalPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reserve work file: %v", ErrArchiving, err)
	}
	workPath := tmp.Name()
	tmp.Close()
	// Backends create the file themselves
	os.Remove(workPath)

	return &Session{builder: b, finalPath: finalPath, workPath: workPath}, nil
}

// WorkPath returns the temporary archive being assembled
func (s *Session) WorkPath() string {
	return s.workPath
}

// Create runs the create phase over stagingDir
func (s *Session) Create(ctx context.Context, stagingDir, mainClass string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.created {
		return fmt.Errorf("%w: create phase already ran for %s", ErrArchiving, s.finalPath)
	}

	err := s.builder.archiver.Create(ctx, CreateOptions{
		ArchivePath: s.workPath,
		SourceDir:   stagingDir,
		MainClass:   mainClass,
	})
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: create %s: %v", ErrArchiving, s.finalPath, err)
	}

	s.created = true
	s.builder.logger.Info("Created archive",
		logger.WithField("archive", s.finalPath),
		logger.WithField("main_class", mainClass))
	return nil
}

// Update layers dir over the archive. It fails with ErrNotCreated when the
// create phase has not completed.
func (s *Session) Update(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.created {
		return fmt.Errorf("%w: %s", ErrNotCreated, s.finalPath)
	}

	if err := s.builder.archiver.Update(ctx, s.workPath, dir); err != nil {
		s.fail()
		return fmt.Errorf("%w: update %s with %s: %v", ErrArchiving, s.finalPath, dir, err)
	}

	s.layers++
	s.builder.logger.Info("Applied layer",
		logger.WithField("layer", s.layers),
		logger.WithField("dir", dir))
	return nil
}

// Commit atomically moves the finished archive to its final path
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.created {
		return fmt.Errorf("%w: %s", ErrNotCreated, s.finalPath)
	}

	if err := os.Rename(s.workPath, s.finalPath); err != nil {
		s.fail()
		return fmt.Errorf("%w: failed to move archive into place: %v", ErrArchiving, err)
	}
	s.closed = true
	return nil
}

// Abort discards the work file. It is a no-op after Commit.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.fail()
}

func (s *Session) fail() {
	s.closed = true
	if err := os.Remove(s.workPath); err != nil && !os.IsNotExist(err) {
		s.builder.logger.Warn("Failed to remove work file",
			logger.WithField("path", s.workPath),
			logger.WithField("error", err))
	}
}
