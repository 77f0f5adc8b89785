// Package bootstrap resolves the launcher program that is embedded in the
// uberpack binary and copies it into a staging directory.
package bootstrap

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/types"
	"github.com/uberpack/uberpack/pkg/utils"
)

// The launcher source lives in launcher/. Rebuilding the bundle needs a JDK.
//go:generate javac --release 8 -nowarn -d bundle/classes launcher/src/uberpack/launcher/Main.java
//go:generate jar --create --file bundle/uberpack-launcher.jar --manifest launcher/MANIFEST.MF -C bundle/classes .

//go:embed bundle
var bundleFS embed.FS

const (
	descriptorFile = "bootstrap.json"
	unitsDir       = "classes"
)

var (
	// ErrBootstrapUnresolved means the launcher metadata or one of its files
	// could not be found. There is no fallback.
	ErrBootstrapUnresolved = errors.New("bootstrap program cannot be resolved")

	// ErrExtract wraps filesystem failures while copying the launcher
	ErrExtract = errors.New("bootstrap extraction failed")
)

// Source gives access to a bootstrap bundle
type Source interface {
	Descriptor() (types.BootstrapDescriptor, error)
	OpenUnit(name string) (fs.File, error)
	OpenContainer(name string) (fs.File, error)
}

// FSSource reads a bundle laid out as bootstrap.json, classes/<unit> and the
// container archive at the root.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource creates a Source over fsys
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// EmbeddedSource returns the bundle compiled into this binary
func EmbeddedSource() *FSSource {
	sub, err := fs.Sub(bundleFS, "bundle")
	if err != nil {
		// The embed directive guarantees the directory
		panic(err)
	}
	return NewFSSource(sub)
}

// Descriptor reads and validates bootstrap.json
func (s *FSSource) Descriptor() (types.BootstrapDescriptor, error) {
	var d types.BootstrapDescriptor

	data, err := fs.ReadFile(s.fsys, descriptorFile)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrBootstrapUnresolved, err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: invalid %s: %v", ErrBootstrapUnresolved, descriptorFile, err)
	}
	if err := d.Validate(); err != nil {
		return d, fmt.Errorf("%w: %v", ErrBootstrapUnresolved, err)
	}
	for _, unit := range d.Units {
		if !fs.ValidPath(unit) || unit == "." {
			return d, fmt.Errorf("%w: invalid unit path %q", ErrBootstrapUnresolved, unit)
		}
	}
	return d, nil
}

// OpenUnit opens an entry-point unit by its logical path
func (s *FSSource) OpenUnit(name string) (fs.File, error) {
	return s.fsys.Open(path.Join(unitsDir, name))
}

// OpenContainer opens the launcher's own container archive
func (s *FSSource) OpenContainer(name string) (fs.File, error) {
	return s.fsys.Open(name)
}

// Extractor copies the bootstrap program into the staging directory
type Extractor struct {
	source Source
	logger logger.Logger
}

// NewExtractor creates an extractor; a nil source means the embedded bundle
func NewExtractor(source Source, log logger.Logger) *Extractor {
	if source == nil {
		source = EmbeddedSource()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{source: source, logger: log.WithTarget("bootstrap")}
}

// Resolve returns the descriptor without touching the filesystem
func (e *Extractor) Resolve() (types.BootstrapDescriptor, error) {
	return e.source.Descriptor()
}

// Extract copies every entry-point unit under its logical path and the
// container archive, unmodified, into the root of stagingDir.
func (e *Extractor) Extract(stagingDir string) (types.BootstrapDescriptor, error) {
	d, err := e.source.Descriptor()
	if err != nil {
		return d, err
	}

	for _, unit := range d.Units {
		src, err := e.source.OpenUnit(unit)
		if err != nil {
			return d, fmt.Errorf("%w: unit %s: %v", ErrBootstrapUnresolved, unit, err)
		}
		dst := filepath.Join(stagingDir, filepath.FromSlash(unit))
		if err := copyFile(src, dst); err != nil {
			return d, fmt.Errorf("%w: unit %s: %v", ErrExtract, unit, err)
		}
		e.logger.Debug("Copied entry-point unit", logger.WithField("unit", unit))
	}

	src, err := e.source.OpenContainer(d.Container)
	if err != nil {
		return d, fmt.Errorf("%w: container %s: %v", ErrBootstrapUnresolved, d.Container, err)
	}
	if err := copyFile(src, filepath.Join(stagingDir, d.Container)); err != nil {
		return d, fmt.Errorf("%w: container %s: %v", ErrExtract, d.Container, err)
	}

	e.logger.Info("Extracted bootstrap program",
		logger.WithField("entry_point", d.EntryPoint()),
		logger.WithField("container", d.Container))
	return d, nil
}

func copyFile(src fs.File, dst string) error {
	defer src.Close()
	return utils.CopyReader(src, dst, 0644)
}
