// Package types provides core types and configurations for uberpack
package types

import (
	"fmt"
	"path/filepath"
)

// ArchiverKind selects the archiving backend
type ArchiverKind string

const (
	ArchiverZip ArchiverKind = "zip"
	ArchiverJar ArchiverKind = "jar"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const (
	DefaultArchiveName  = "uber.jar"
	DefaultManifestName = "modules.txt"
	DefaultJarCommand   = "jar"
)

// NotificationConfig represents notification settings
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// PackagerConfig is the root configuration of an uberpack run.
// Input directories are owned by upstream build stages and only read.
type PackagerConfig struct {
	Version                  string              `json:"version" yaml:"version"`
	ModuleArtifactSourcePath string              `json:"moduleArtifactSourcePath" yaml:"moduleArtifactSourcePath"`
	ModuleDependencyPath     []string            `json:"moduleDependencyPath,omitempty" yaml:"moduleDependencyPath,omitempty"`
	ModuleUberPath           string              `json:"moduleUberPath" yaml:"moduleUberPath"`
	ModuleUberExplodedPath   string              `json:"moduleUberExplodedPath" yaml:"moduleUberExplodedPath"`
	ArchiveName              string              `json:"archiveName,omitempty" yaml:"archiveName,omitempty"`
	ManifestName             string              `json:"manifestName,omitempty" yaml:"manifestName,omitempty"`
	Archiver                 ArchiverKind        `json:"archiver,omitempty" yaml:"archiver,omitempty"`
	JarCommand               string              `json:"jarCommand,omitempty" yaml:"jarCommand,omitempty"`
	SortEntries              *bool               `json:"sortEntries,omitempty" yaml:"sortEntries,omitempty"`
	LogLevel                 LogLevel            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Notifications            *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// ModulePaths returns the ordered module path list: the artifact source
// directory first, then every dependency directory in configured order.
func (c *PackagerConfig) ModulePaths() ModulePathList {
	paths := NewModulePathList()
	if c.ModuleArtifactSourcePath != "" {
		paths = paths.Append(c.ModuleArtifactSourcePath)
	}
	return paths.AppendAll(c.ModuleDependencyPath...)
}

// ArchivePath returns the final archive location
func (c *PackagerConfig) ArchivePath() string {
	name := c.ArchiveName
	if name == "" {
		name = DefaultArchiveName
	}
	return filepath.Join(c.ModuleUberPath, name)
}

// ManifestFileName returns the manifest filename inside the staging dir
func (c *PackagerConfig) ManifestFileName() string {
	if c.ManifestName == "" {
		return DefaultManifestName
	}
	return c.ManifestName
}

// ShouldSortEntries reports whether directory listings are sorted by name
func (c *PackagerConfig) ShouldSortEntries() bool {
	return c.SortEntries == nil || *c.SortEntries
}

// NotificationsEnabled reports whether desktop notifications are on
func (c *PackagerConfig) NotificationsEnabled() bool {
	return c.Notifications != nil && c.Notifications.Enabled != nil && *c.Notifications.Enabled
}

// ModulePathList is an ordered, append-only list of artifact directories.
// Order is significant: it drives manifest order and archive layering.
type ModulePathList []string

// NewModulePathList creates an empty list
func NewModulePathList() ModulePathList {
	return ModulePathList{}
}

// Append returns a new list with path added at the end
func (l ModulePathList) Append(path string) ModulePathList {
	return l.AppendAll(path)
}

// AppendAll returns a new list with paths added at the end in order
func (l ModulePathList) AppendAll(paths ...string) ModulePathList {
	out := make(ModulePathList, 0, len(l)+len(paths))
	out = append(out, l...)
	return append(out, paths...)
}

// ArtifactEntry is a single file found directly inside a module path directory
type ArtifactEntry struct {
	SourcePath string `json:"sourcePath"`
	Name       string `json:"name"`
}

// BootstrapDescriptor identifies the embedded bootstrap program
type BootstrapDescriptor struct {
	EntryModule string   `json:"entryModule"`
	EntryType   string   `json:"entryType"`
	Container   string   `json:"container"`
	Units       []string `json:"units"`
}

// EntryPoint returns the "module/type" descriptor written first in the manifest
func (d BootstrapDescriptor) EntryPoint() string {
	return d.EntryModule + "/" + d.EntryType
}

// Validate checks that every field needed to launch is present
func (d BootstrapDescriptor) Validate() error {
	switch {
	case d.EntryModule == "":
		return fmt.Errorf("missing entry module")
	case d.EntryType == "":
		return fmt.Errorf("missing entry type")
	case d.Container == "":
		return fmt.Errorf("missing container archive name")
	case len(d.Units) == 0:
		return fmt.Errorf("no entry-point units")
	}
	if filepath.Base(d.Container) != d.Container {
		return fmt.Errorf("container must be a bare filename: %s", d.Container)
	}
	return nil
}

// RunState represents the state of one assembler run
type RunState string

const (
	RunStateInit         RunState = "INIT"
	RunStateStaged       RunState = "STAGED"
	RunStateBootstrapped RunState = "BOOTSTRAPPED"
	RunStateManifested   RunState = "MANIFESTED"
	RunStateCreated      RunState = "CREATED"
	RunStateUpdated      RunState = "UPDATED"
	RunStateDone         RunState = "DONE"
	RunStateFailed       RunState = "FAILED"
)

// IsTerminal reports whether no further transition is possible
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// CanTransition reports whether moving from s to next is allowed
func (s RunState) CanTransition(next RunState) bool {
	if next == RunStateFailed {
		return !s.IsTerminal()
	}
	switch s {
	case RunStateInit:
		return next == RunStateStaged
	case RunStateStaged:
		return next == RunStateBootstrapped
	case RunStateBootstrapped:
		return next == RunStateManifested
	case RunStateManifested:
		return next == RunStateCreated
	case RunStateCreated, RunStateUpdated:
		return next == RunStateUpdated || next == RunStateDone
	default:
		return false
	}
}
