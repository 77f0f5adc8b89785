// Package manifest writes the load-order file read by the bootstrap launcher.
//
// The file has one entry per line: the entry-point descriptor, the launcher
// container filename, then every artifact filename across the module path
// list in list order.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/types"
	"github.com/uberpack/uberpack/pkg/utils"
)

// ErrManifest wraps listing and write failures
var ErrManifest = errors.New("manifest")

// LineSeparator is the platform line terminator
var LineSeparator = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Writer produces manifest files
type Writer struct {
	sorted        bool
	lineSeparator string
	logger        logger.Logger
}

// Option configures a Writer
type Option func(*Writer)

// WithSortedEntries controls whether each directory listing is sorted by name
func WithSortedEntries(sorted bool) Option {
	return func(w *Writer) {
		w.sorted = sorted
	}
}

// WithLineSeparator overrides the platform line terminator
func WithLineSeparator(sep string) Option {
	return func(w *Writer) {
		w.lineSeparator = sep
	}
}

// NewWriter creates a manifest writer. Entries are sorted by default.
func NewWriter(log logger.Logger, opts ...Option) *Writer {
	if log == nil {
		log = logger.Discard()
	}
	w := &Writer{
		sorted:        true,
		lineSeparator: LineSeparator,
		logger:        log.WithTarget("manifest"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Entries lists the regular files directly inside every module path
// directory, directory by directory in list order.
func (w *Writer) Entries(modulePaths types.ModulePathList) ([]types.ArtifactEntry, error) {
	var entries []types.ArtifactEntry
	for _, dir := range modulePaths {
		files, err := utils.ListFiles(dir, w.sorted)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list %s: %v", ErrManifest, dir, err)
		}
		for _, f := range files {
			entries = append(entries, types.ArtifactEntry{
				SourcePath: filepath.Join(dir, f.Name()),
				Name:       f.Name(),
			})
		}
	}
	return entries, nil
}

// Lines returns the manifest content, one element per line
func (w *Writer) Lines(d types.BootstrapDescriptor, modulePaths types.ModulePathList) ([]string, error) {
	entries, err := w.Entries(modulePaths)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(entries)+2)
	lines = append(lines, d.EntryPoint(), d.Container)
	for _, e := range entries {
		lines = append(lines, e.Name)
	}
	return lines, nil
}

// Write computes the manifest and writes it to path, replacing any previous
// content. It returns the lines written.
func (w *Writer) Write(path string, d types.BootstrapDescriptor, modulePaths types.ModulePathList) ([]string, error) {
	lines, err := w.Lines(d, modulePaths)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}

	bw := bufio.NewWriter(f)
	for _, line := range lines {
		bw.WriteString(line)
		bw.WriteString(w.lineSeparator)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to write %s: %v", ErrManifest, path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to close %s: %v", ErrManifest, path, err)
	}

	w.logger.Info("Wrote manifest",
		logger.WithField("path", path),
		logger.WithField("entries", len(lines)))
	return lines, nil
}
