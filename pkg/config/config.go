// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/uberpack/uberpack/pkg/types"
	"gopkg.in/yaml.v3"
)

// SupportedVersion is the only config schema version understood
const SupportedVersion = "1.0"

// Default file names searched in the project root, in order
var DefaultConfigNames = []string{
	"uberpack.config.json",
	"uberpack.config.yaml",
	"uberpack.config.yml",
}

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindConfig returns the first default config file present in root
func (m *Manager) FindConfig(root string) (string, bool) {
	for _, name := range DefaultConfigNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// LoadConfig loads a JSON or YAML configuration file, applies defaults and
// checks its fields. Relative paths stay relative, so directory overlap is
// only checked by ValidateConfig after ResolvePaths.
func (m *Manager) LoadConfig(path string) (*types.PackagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := m.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON first and falls back to YAML
func (m *Manager) Parse(data []byte) (*types.PackagerConfig, error) {
	var cfg types.PackagerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		cfg = types.PackagerConfig{}
		if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
			return nil, fmt.Errorf("failed to parse config as JSON or YAML: %v", yerr)
		}
	}

	m.ApplyDefaults(&cfg)
	if err := validateFields(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in every optional field left empty
func (m *Manager) ApplyDefaults(cfg *types.PackagerConfig) {
	if cfg.Version == "" {
		cfg.Version = SupportedVersion
	}
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = types.DefaultArchiveName
	}
	if cfg.ManifestName == "" {
		cfg.ManifestName = types.DefaultManifestName
	}
	if cfg.Archiver == "" {
		cfg.Archiver = types.ArchiverZip
	}
	if cfg.JarCommand == "" {
		cfg.JarCommand = types.DefaultJarCommand
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = types.LogLevelInfo
	}
}

// ValidateConfig checks the fields and the directory layout. Call it after
// ResolvePaths; relative paths are taken against the working directory.
func (m *Manager) ValidateConfig(cfg *types.PackagerConfig) error {
	if err := validateFields(cfg); err != nil {
		return err
	}
	return validateLayout(cfg)
}

func validateFields(cfg *types.PackagerConfig) error {
	if cfg.Version != SupportedVersion {
		return fmt.Errorf("%w: unsupported config version: %s", ErrInvalidConfig, cfg.Version)
	}

	switch cfg.Archiver {
	case types.ArchiverZip, types.ArchiverJar:
	default:
		return fmt.Errorf("%w: unknown archiver: %s", ErrInvalidConfig, cfg.Archiver)
	}

	if cfg.ModuleUberPath == "" {
		return fmt.Errorf("%w: moduleUberPath is required", ErrInvalidConfig)
	}
	if cfg.ModuleUberExplodedPath == "" {
		return fmt.Errorf("%w: moduleUberExplodedPath is required", ErrInvalidConfig)
	}

	for _, name := range []string{cfg.ArchiveName, cfg.ManifestName} {
		if filepath.Base(name) != name {
			return fmt.Errorf("%w: %s must be a bare filename", ErrInvalidConfig, name)
		}
	}

	return nil
}

func validateLayout(cfg *types.PackagerConfig) error {
	// The staging directory is deleted on every run and the output directory
	// receives work files. Neither may overlap an input directory.
	staging := absolute(cfg.ModuleUberExplodedPath)
	output := absolute(cfg.ModuleUberPath)
	if within(output, staging) {
		return fmt.Errorf("%w: output archive must not be written inside the staging directory", ErrInvalidConfig)
	}
	for _, dir := range cfg.ModulePaths() {
		if dir == "" {
			return fmt.Errorf("%w: empty module path entry", ErrInvalidConfig)
		}
		input := absolute(dir)
		switch {
		case within(input, staging):
			return fmt.Errorf("%w: input directory %s is inside the staging directory", ErrInvalidConfig, dir)
		case within(staging, input):
			return fmt.Errorf("%w: staging directory is inside input directory %s", ErrInvalidConfig, dir)
		case within(output, input):
			return fmt.Errorf("%w: output directory is inside input directory %s", ErrInvalidConfig, dir)
		}
	}

	return nil
}

// ResolvePaths makes every configured path absolute against root
func (m *Manager) ResolvePaths(cfg *types.PackagerConfig, root string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	cfg.ModuleArtifactSourcePath = resolve(cfg.ModuleArtifactSourcePath)
	for i, dir := range cfg.ModuleDependencyPath {
		cfg.ModuleDependencyPath[i] = resolve(dir)
	}
	cfg.ModuleUberPath = resolve(cfg.ModuleUberPath)
	cfg.ModuleUberExplodedPath = resolve(cfg.ModuleUberExplodedPath)
}

// GetDefaultConfig returns the conventional project layout
func (m *Manager) GetDefaultConfig() *types.PackagerConfig {
	sort := true
	enabled := false

	return &types.PackagerConfig{
		Version:                  SupportedVersion,
		ModuleArtifactSourcePath: filepath.Join("target", "main", "artifact"),
		ModuleDependencyPath:     []string{"deps"},
		ModuleUberPath:           filepath.Join("target", "uber"),
		ModuleUberExplodedPath:   filepath.Join("target", "uber-exploded"),
		ArchiveName:              types.DefaultArchiveName,
		ManifestName:             types.DefaultManifestName,
		Archiver:                 types.ArchiverZip,
		JarCommand:               types.DefaultJarCommand,
		SortEntries:              &sort,
		LogLevel:                 types.LogLevelInfo,
		Notifications:            &types.NotificationConfig{Enabled: &enabled},
	}
}

// within reports whether path equals dir or lies below it
// absolute cleans p and makes it absolute against the working directory
func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
