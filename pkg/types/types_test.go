package types_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/uberpack/uberpack/pkg/types"
)

func TestModulePaths_Order(t *testing.T) {
	cfg := &types.PackagerConfig{
		ModuleArtifactSourcePath: "target/artifact",
		ModuleDependencyPath:     []string{"deps/b", "deps/a"},
	}

	paths := cfg.ModulePaths()
	want := []string{"target/artifact", "deps/b", "deps/a"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %d", len(want), len(paths))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestModulePathList_AppendDoesNotAlias(t *testing.T) {
	base := types.NewModulePathList().Append("a")
	first := base.Append("b")
	second := base.Append("c")

	if first[1] != "b" {
		t.Errorf("expected appended list to keep b, got %s", first[1])
	}
	if second[1] != "c" {
		t.Errorf("expected appended list to keep c, got %s", second[1])
	}
	if len(base) != 1 {
		t.Errorf("expected base list untouched, got %v", base)
	}
}

func TestPackagerConfig_Defaults(t *testing.T) {
	cfg := &types.PackagerConfig{ModuleUberPath: "out"}

	if got := cfg.ArchivePath(); got != filepath.Join("out", "uber.jar") {
		t.Errorf("unexpected archive path %s", got)
	}
	if got := cfg.ManifestFileName(); got != "modules.txt" {
		t.Errorf("unexpected manifest name %s", got)
	}
	if !cfg.ShouldSortEntries() {
		t.Error("expected sorting on by default")
	}
	if cfg.NotificationsEnabled() {
		t.Error("expected notifications off by default")
	}
}

func TestPackagerConfig_JSON(t *testing.T) {
	data := `{
		"version": "1.0",
		"moduleArtifactSourcePath": "target/artifact",
		"moduleDependencyPath": ["deps"],
		"moduleUberPath": "target/uber",
		"moduleUberExplodedPath": "target/uber-exploded",
		"archiver": "jar",
		"sortEntries": false
	}`

	var cfg types.PackagerConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if cfg.Archiver != types.ArchiverJar {
		t.Errorf("expected jar archiver, got %s", cfg.Archiver)
	}
	if cfg.ShouldSortEntries() {
		t.Error("expected sorting disabled")
	}
	if len(cfg.ModulePaths()) != 2 {
		t.Errorf("expected 2 module paths, got %d", len(cfg.ModulePaths()))
	}
}

func TestBootstrapDescriptor(t *testing.T) {
	d := types.BootstrapDescriptor{
		EntryModule: "uberpack.launcher",
		EntryType:   "uberpack.launcher.Main",
		Container:   "uberpack-launcher.jar",
		Units:       []string{"uberpack/launcher/Main.class"},
	}
	if got := d.EntryPoint(); got != "uberpack.launcher/uberpack.launcher.Main" {
		t.Errorf("unexpected entry point %s", got)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("expected valid descriptor: %v", err)
	}

	d.Container = "lib/uberpack-launcher.jar"
	if err := d.Validate(); err == nil {
		t.Error("expected nested container path to be rejected")
	}
}

func TestRunState_Transitions(t *testing.T) {
	tests := []struct {
		from, to types.RunState
		allowed  bool
	}{
		{types.RunStateInit, types.RunStateStaged, true},
		{types.RunStateInit, types.RunStateCreated, false},
		{types.RunStateStaged, types.RunStateBootstrapped, true},
		{types.RunStateBootstrapped, types.RunStateManifested, true},
		{types.RunStateManifested, types.RunStateCreated, true},
		{types.RunStateManifested, types.RunStateUpdated, false},
		{types.RunStateCreated, types.RunStateUpdated, true},
		{types.RunStateCreated, types.RunStateDone, true},
		{types.RunStateUpdated, types.RunStateUpdated, true},
		{types.RunStateUpdated, types.RunStateDone, true},
		{types.RunStateStaged, types.RunStateFailed, true},
		{types.RunStateDone, types.RunStateFailed, false},
		{types.RunStateFailed, types.RunStateInit, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.allowed {
				t.Errorf("expected %v, got %v", tt.allowed, got)
			}
		})
	}
}
