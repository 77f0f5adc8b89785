// Package watcher reruns packaging when an input directory changes
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/uberpack/uberpack/pkg/logger"
)

// DefaultSettlingDelay is how long the watcher waits for a burst of changes
// to finish before reporting them
const DefaultSettlingDelay = 500 * time.Millisecond

// DefaultIgnore lists base-name globs that never trigger a rerun
var DefaultIgnore = []string{".*.swp", "*~", ".DS_Store", "*.tmp", "*.part"}

// ChangeFunc receives the changed paths of one settled burst
type ChangeFunc func(paths []string)

// Registry watches input directories with fsnotify. It satisfies
// assembler.WatcherRegistry.
type Registry struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	settling time.Duration
	ignore   []string

	roots   []string
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex
}

// NewRegistry creates an fsnotify-backed registry
func NewRegistry(log logger.Logger) (*Registry, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		watcher:  w,
		logger:   log.WithTarget("watch"),
		settling: DefaultSettlingDelay,
		ignore:   DefaultIgnore,
		pending:  make(map[string]struct{}),
	}, nil
}

// SetSettlingDelay sets the delay for event settling
func (r *Registry) SetSettlingDelay(delay time.Duration) {
	r.mu.Lock()
	r.settling = delay
	r.mu.Unlock()
}

// SetIgnore replaces the ignored base-name globs
func (r *Registry) SetIgnore(patterns []string) {
	r.mu.Lock()
	r.ignore = patterns
	r.mu.Unlock()
}

// Watch adds dir and its subdirectories. Layers are included recursively
// into the archive, so nested changes matter too.
func (r *Registry) Watch(dir string) error {
	if err := r.addDirectory(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.mu.Lock()
	r.roots = append(r.roots, dir)
	r.mu.Unlock()

	r.logger.Debug("Watching input directory", logger.WithField("dir", dir))
	return nil
}

// Roots returns the registered directories in registration order
func (r *Registry) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

func (r *Registry) addDirectory(dir string) error {
	if err := r.watcher.Add(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if err := r.addDirectory(sub); err != nil {
			r.logger.Warn(fmt.Sprintf("Failed to watch subdirectory %s: %v", sub, err))
		}
	}
	return nil
}

// Run delivers settled change bursts to onChange until ctx is done or the
// watcher fails. onChange is never called concurrently with itself.
func (r *Registry) Run(ctx context.Context, onChange ChangeFunc) error {
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			r.stopTimer()
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if r.isIgnored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := r.addDirectory(event.Name); err != nil {
						r.logger.Warn(fmt.Sprintf("Failed to watch new directory %s: %v", event.Name, err))
					}
				}
			}
			r.schedule(event.Name, fire)

		case <-fire:
			if paths := r.drain(); len(paths) > 0 {
				r.logger.Info("Input change detected", logger.WithField("files", len(paths)))
				onChange(paths)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Close stops the underlying watcher
func (r *Registry) Close() error {
	r.stopTimer()
	return r.watcher.Close()
}

func (r *Registry) schedule(path string, fire chan<- struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[path] = struct{}{}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.settling, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (r *Registry) drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.pending))
	for p := range r.pending {
		paths = append(paths, p)
	}
	r.pending = make(map[string]struct{})
	sort.Strings(paths)
	return paths
}

func (r *Registry) stopTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Registry) isIgnored(path string) bool {
	r.mu.Lock()
	patterns := r.ignore
	r.mu.Unlock()

	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
