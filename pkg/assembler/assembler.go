// Package assembler drives one uber-archive build: stage, extract the
// launcher, write the manifest, create the archive, layer each module path
// directory, commit.
package assembler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/uberpack/uberpack/pkg/archive"
	"github.com/uberpack/uberpack/pkg/bootstrap"
	pcontext "github.com/uberpack/uberpack/pkg/context"
	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/manifest"
	"github.com/uberpack/uberpack/pkg/staging"
	"github.com/uberpack/uberpack/pkg/state"
	"github.com/uberpack/uberpack/pkg/types"
)

// WatcherRegistry receives every input directory the assembler reads
type WatcherRegistry interface {
	Watch(dir string) error
}

// Recorder persists run outcomes
type Recorder interface {
	Save(rec state.RunRecord) error
}

// Result describes a finished run
type Result struct {
	RunID       string
	State       types.RunState
	ArchivePath string
	Manifest    []string
	Layers      int
	StartedAt   time.Time
	Duration    time.Duration
	Err         error
}

// Usable reports whether the archive may be consumed. Only a DONE run
// produces a valid archive.
func (r *Result) Usable() bool {
	return r.State == types.RunStateDone && r.Err == nil
}

// Assembler builds the uber-archive described by a PackagerConfig
type Assembler struct {
	config    *types.PackagerConfig
	staging   *staging.Builder
	extractor *bootstrap.Extractor
	manifest  *manifest.Writer
	archives  *archive.Builder
	recorder  Recorder
	logger    logger.Logger

	running bool
	mu      sync.Mutex
}

// Option configures an Assembler
type Option func(*options)

type options struct {
	source   bootstrap.Source
	recorder Recorder
	manifest []manifest.Option
}

// WithBootstrapSource replaces the embedded launcher bundle
func WithBootstrapSource(src bootstrap.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithRecorder persists every run outcome
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithManifestOptions passes options to the manifest writer
func WithManifestOptions(opts ...manifest.Option) Option {
	return func(o *options) {
		o.manifest = append(o.manifest, opts...)
	}
}

// New creates an assembler. The archiver is the archiving backend used for
// the create and update phases.
func New(cfg *types.PackagerConfig, archiver archive.Archiver, log logger.Logger, opts ...Option) *Assembler {
	if log == nil {
		log = logger.Discard()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	manifestOpts := append([]manifest.Option{manifest.WithSortedEntries(cfg.ShouldSortEntries())}, o.manifest...)

	return &Assembler{
		config:    cfg,
		staging:   staging.NewBuilder(cfg.ModuleUberExplodedPath, log),
		extractor: bootstrap.NewExtractor(o.source, log),
		manifest:  manifest.NewWriter(log, manifestOpts...),
		archives:  archive.NewBuilder(archiver, log),
		recorder:  o.recorder,
		logger:    log,
	}
}

// InputDirectories returns the module path list: the artifact source
// directory followed by every dependency directory
func (a *Assembler) InputDirectories() []string {
	return a.config.ModulePaths()
}

// Watch registers every input directory with the registry
func (a *Assembler) Watch(registry WatcherRegistry) error {
	for _, dir := range a.InputDirectories() {
		if err := registry.Watch(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

// Run performs one complete build. The returned error is non-nil exactly
// when the result is not usable.
func (a *Assembler) Run(ctx context.Context) (*Result, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, ErrRunInProgress
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	ctx = pcontext.NewRunContext(ctx)
	r := &run{
		assembler: a,
		ctx:       ctx,
		log:       logger.WithContext(ctx, a.logger),
		result: &Result{
			RunID:       pcontext.GetRunID(ctx),
			State:       types.RunStateInit,
			ArchivePath: a.config.ArchivePath(),
			StartedAt:   time.Now(),
		},
	}

	err := r.execute()
	r.result.Duration = time.Since(r.result.StartedAt)
	if err != nil {
		r.result.Err = err
		r.log.Error("Packaging failed",
			logger.WithField("state", r.failedIn),
			logger.WithField("error", err))
	} else {
		r.log.Success(fmt.Sprintf("Assembled %s", r.result.ArchivePath),
			logger.WithField("layers", r.result.Layers),
			logger.WithField("entries", len(r.result.Manifest)))
	}

	a.record(r.result)
	return r.result, err
}

func (a *Assembler) record(res *Result) {
	if a.recorder == nil {
		return
	}
	rec := state.RunRecord{
		RunID:           res.RunID,
		State:           res.State,
		ArchivePath:     res.ArchivePath,
		StartedAt:       res.StartedAt,
		Duration:        res.Duration,
		Layers:          res.Layers,
		ManifestEntries: len(res.Manifest),
		InputDirs:       a.InputDirectories(),
	}
	if res.Err != nil {
		rec.LastError = res.Err.Error()
	}
	if err := a.recorder.Save(rec); err != nil {
		a.logger.Warn("Failed to record run", logger.WithField("error", err))
	}
}

// run holds the state of a single Run call
type run struct {
	assembler *Assembler
	ctx       context.Context
	log       logger.Logger
	result    *Result
	failedIn  types.RunState
}

func (r *run) execute() error {
	a := r.assembler
	modulePaths := a.config.ModulePaths()

	// Resolve before touching any output
	descriptor, err := a.extractor.Resolve()
	if err != nil {
		return r.fail(ErrEnvironment, err)
	}

	if err := a.staging.Reset(); err != nil {
		return r.fail(ErrFilesystem, err)
	}
	if err := r.transition(types.RunStateStaged); err != nil {
		return err
	}

	if _, err := a.extractor.Extract(a.staging.Dir()); err != nil {
		return r.fail(ErrFilesystem, err)
	}
	if err := r.transition(types.RunStateBootstrapped); err != nil {
		return err
	}

	manifestPath := filepath.Join(a.staging.Dir(), a.config.ManifestFileName())
	lines, err := a.manifest.Write(manifestPath, descriptor, modulePaths)
	if err != nil {
		return r.fail(ErrFilesystem, err)
	}
	r.result.Manifest = lines
	if err := r.transition(types.RunStateManifested); err != nil {
		return err
	}

	session, err := a.archives.Begin(r.result.ArchivePath)
	if err != nil {
		return r.fail(ErrArchive, err)
	}
	defer session.Abort()
	r.log.Debug("Assembling into work file", logger.WithField("work", session.WorkPath()))

	if err := session.Create(r.ctx, a.staging.Dir(), descriptor.EntryType); err != nil {
		return r.fail(ErrArchive, err)
	}
	if err := r.transition(types.RunStateCreated); err != nil {
		return err
	}

	for _, dir := range modulePaths {
		if err := session.Update(r.ctx, dir); err != nil {
			return r.fail(ErrArchive, err)
		}
		r.result.Layers++
		if err := r.transition(types.RunStateUpdated); err != nil {
			return err
		}
	}

	if err := session.Commit(); err != nil {
		return r.fail(ErrArchive, err)
	}
	return r.transition(types.RunStateDone)
}

func (r *run) transition(next types.RunState) error {
	cur := r.result.State
	if !cur.CanTransition(next) {
		return r.fail(ErrInvalidTransition, fmt.Errorf("%s -> %s", cur, next))
	}
	r.result.State = next
	r.log = logger.WithContext(pcontext.WithPhase(r.ctx, string(next)), r.assembler.logger)
	r.log.Debug("State changed",
		logger.WithField("from", cur),
		logger.WithField("to", next))
	return nil
}

func (r *run) fail(kind, err error) error {
	r.failedIn = r.result.State
	r.result.State = types.RunStateFailed
	return &RunError{State: r.failedIn, Kind: kind, Err: err}
}
