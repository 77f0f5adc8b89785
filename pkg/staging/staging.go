// Package staging owns the exploded directory that is packed into the
// archive's first layer.
package staging

import (
	"errors"
	"fmt"

	"github.com/uberpack/uberpack/pkg/logger"
	"github.com/uberpack/uberpack/pkg/utils"
)

// ErrStaging wraps every filesystem failure while rebuilding the directory
var ErrStaging = errors.New("staging directory")

// Builder recreates the staging directory at the start of every run
type Builder struct {
	dir    string
	logger logger.Logger
}

// NewBuilder creates a staging builder for dir
func NewBuilder(dir string, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Discard()
	}
	return &Builder{dir: dir, logger: log.WithTarget("staging")}
}

// Dir returns the staging directory path
func (b *Builder) Dir() string {
	return b.dir
}

// Reset deletes the staging directory if present and recreates it empty.
// Nothing from a previous run survives.
func (b *Builder) Reset() error {
	if b.dir == "" {
		return fmt.Errorf("%w: no path configured", ErrStaging)
	}

	if err := utils.RemoveDirectory(b.dir); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %v", ErrStaging, b.dir, err)
	}
	if err := utils.EnsureDirectory(b.dir); err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", ErrStaging, b.dir, err)
	}

	b.logger.Debug("Recreated staging directory", logger.WithField("path", b.dir))
	return nil
}
