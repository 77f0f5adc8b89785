// Package engine keeps an uber-archive up to date: it packages once, then
// repackages whenever an input directory settles after a change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uberpack/uberpack/pkg/assembler"
	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/watcher"
)

// ErrAlreadyRunning is returned by Start when a watch loop is active
var ErrAlreadyRunning = errors.New("engine is already running")

// Packager runs one build and exposes its input directories
type Packager interface {
	Run(ctx context.Context) (*assembler.Result, error)
	Watch(registry assembler.WatcherRegistry) error
}

// ChangeSource reports settled changes in registered directories
type ChangeSource interface {
	assembler.WatcherRegistry
	Roots() []string
	Run(ctx context.Context, onChange watcher.ChangeFunc) error
}

// Notifier is told about every rebuild
type Notifier interface {
	NotifyPackageStart(archivePath string, changed int)
	NotifyPackageSuccess(archivePath string, duration time.Duration)
	NotifyPackageFailure(archivePath string, err error)
}

// Stats summarizes the runs performed by an engine
type Stats struct {
	Runs      int
	Failures  int
	LastState string
}

// Engine drives the watch loop
type Engine struct {
	packager    Packager
	changes     ChangeSource
	notifier    Notifier
	archivePath string
	logger      logger.Logger

	stats     Stats
	isRunning bool
	mu        sync.Mutex
}

// New creates an engine. notifier may be nil.
func New(p Packager, changes ChangeSource, n Notifier, archivePath string, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Discard()
	}
	return &Engine{
		packager:    p,
		changes:     changes,
		notifier:    n,
		archivePath: archivePath,
		logger:      log.WithTarget("engine"),
	}
}

// Start registers the input directories, packages once and then rebuilds on
// every settled change until ctx is cancelled. A failed build does not stop
// the loop; the next change retries.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.isRunning = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.isRunning = false
		e.mu.Unlock()
	}()

	if err := e.packager.Watch(e.changes); err != nil {
		return fmt.Errorf("failed to register input directories: %w", err)
	}
	e.logger.Info(fmt.Sprintf("Watching %d input directories", len(e.changes.Roots())))

	e.build(ctx, 0)

	// Changes arriving during a build collapse into one follow-up build
	trigger := make(chan struct{}, 1)
	pending := 0
	var pendingMu sync.Mutex

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := NewSafeGroup(loopCtx, e.logger)

	g.Go(func() error {
		// The build loop ends with the change source
		defer stop()
		return e.changes.Run(gctx, func(paths []string) {
			pendingMu.Lock()
			pending += len(paths)
			pendingMu.Unlock()

			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				pendingMu.Lock()
				n := pending
				pending = 0
				pendingMu.Unlock()
				e.build(gctx, n)
			}
		}
	})

	e.logger.Info("Watching for changes")
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Stats returns a snapshot of the run counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) build(ctx context.Context, changed int) {
	if changed > 0 && e.notifier != nil {
		e.notifier.NotifyPackageStart(e.archivePath, changed)
	}

	res, err := e.packager.Run(ctx)

	e.mu.Lock()
	e.stats.Runs++
	if err != nil {
		e.stats.Failures++
	}
	if res != nil {
		e.stats.LastState = string(res.State)
	}
	e.mu.Unlock()

	if e.notifier == nil {
		return
	}
	if err != nil {
		e.notifier.NotifyPackageFailure(e.archivePath, err)
		return
	}
	e.notifier.NotifyPackageSuccess(e.archivePath, res.Duration)
}
