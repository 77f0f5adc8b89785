package cli_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/uberpack/uberpack/pkg/bootstrap"
	"github.com/uberpack/uberpack/pkg/cli"
	"github.com/uberpack/uberpack/pkg/state"
	"github.com/uberpack/uberpack/pkg/types"
)

func run(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cfg := cli.NewConfig()
	cfg.Version = "1.2.3"
	c := cli.NewCLIWithOutput(cfg, &out, &errOut)
	err := c.Execute(append([]string{"--root", root, "-v", "error"}, args...))
	return out.String(), errOut.String(), err
}

// newProject writes a default config and the conventional input layout
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if _, _, err := run(t, root, "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	files := map[string]string{
		"target/main/artifact/app.jar": "app",
		"deps/lib-b.jar":               "b",
		"deps/lib-a.jar":               "a",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// writeConfigDeps replaces the dependency list of the project config
func writeConfigDeps(t *testing.T, root string, deps ...string) {
	t.Helper()
	path := filepath.Join(root, "uberpack.config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg types.PackagerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	cfg.ModuleDependencyPath = deps
	data, err = json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInit_WritesLoadableConfig(t *testing.T) {
	root := t.TempDir()

	out, _, err := run(t, root, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Created configuration") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(filepath.Join(root, "uberpack.config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var cfg types.PackagerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("generated config is not JSON: %v", err)
	}
	if cfg.Version != "1.0" || cfg.ModuleUberPath == "" {
		t.Errorf("unexpected default config %+v", cfg)
	}

	if _, _, err := run(t, root, "init"); err == nil {
		t.Error("expected second init without --force to fail")
	}
	if _, _, err := run(t, root, "init", "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestInit_YAML(t *testing.T) {
	root := t.TempDir()
	if _, _, err := run(t, root, "init", "--format", "yaml"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "uberpack.config.yaml")); err != nil {
		t.Errorf("expected yaml config: %v", err)
	}

	// The yaml file is found by later commands
	if _, _, err := run(t, root, "inputs"); err != nil {
		t.Errorf("inputs with yaml config failed: %v", err)
	}
}

func TestPackage_EndToEnd(t *testing.T) {
	root := newProject(t)

	out, _, err := run(t, root, "package")
	if err != nil {
		t.Fatalf("package failed: %v", err)
	}
	if !strings.Contains(out, "Assembled") {
		t.Errorf("unexpected output %q", out)
	}

	archivePath := filepath.Join(root, "target", "uber", types.DefaultArchiveName)
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("archive not readable: %v", err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"app.jar", "lib-a.jar", "lib-b.jar", types.DefaultManifestName, "META-INF/MANIFEST.MF"} {
		if !names[want] {
			t.Errorf("archive missing %s", want)
		}
	}

	rec, err := state.NewStore(filepath.Join(root, ".uberpack")).Load()
	if err != nil {
		t.Fatalf("no run record: %v", err)
	}
	if !rec.Usable() || rec.Layers != 2 {
		t.Errorf("unexpected record %+v", rec)
	}

	statusOut, _, err := run(t, root, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(statusOut, string(types.RunStateDone)) {
		t.Errorf("status does not report DONE: %q", statusOut)
	}

	if _, _, err := run(t, root, "status", "--clear"); err != nil {
		t.Fatal(err)
	}
	statusOut, _, _ = run(t, root, "status")
	if !strings.Contains(statusOut, "No runs recorded yet") {
		t.Errorf("record not cleared: %q", statusOut)
	}
}

func TestPackage_MissingInputFails(t *testing.T) {
	root := newProject(t)
	if err := os.RemoveAll(filepath.Join(root, "deps")); err != nil {
		t.Fatal(err)
	}

	if _, _, err := run(t, root, "package"); err == nil {
		t.Fatal("expected package to fail with a missing dependency directory")
	}

	out, _, err := run(t, root, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var rec state.RunRecord
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("status --json is not JSON: %v", err)
	}
	if rec.State != types.RunStateFailed || rec.LastError == "" {
		t.Errorf("expected failed record, got %+v", rec)
	}
}

func TestPackage_UnknownArchiverFromEnv(t *testing.T) {
	root := newProject(t)
	t.Setenv("UBERPACK_ARCHIVER", "tar")

	_, _, err := run(t, root, "package")
	if err == nil || !strings.Contains(err.Error(), "unknown archiver") {
		t.Errorf("expected unknown archiver error, got %v", err)
	}
}

func TestManifest_PrintsWithoutBuilding(t *testing.T) {
	root := newProject(t)

	out, _, err := run(t, root, "manifest")
	if err != nil {
		t.Fatalf("manifest failed: %v", err)
	}

	d, err := bootstrap.EmbeddedSource().Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{d.EntryPoint(), d.Container, "app.jar", "lib-a.jar", "lib-b.jar"}, "\n") + "\n"
	if out != want {
		t.Errorf("manifest = %q, want %q", out, want)
	}

	if _, err := os.Stat(filepath.Join(root, "target", "uber-exploded")); !os.IsNotExist(err) {
		t.Error("manifest command must not create the staging directory")
	}
}

func TestInputs_ListsInOrder(t *testing.T) {
	root := newProject(t)

	out, _, err := run(t, root, "inputs")
	if err != nil {
		t.Fatal(err)
	}

	artifact := strings.Index(out, filepath.Join(root, "target", "main", "artifact"))
	deps := strings.Index(out, filepath.Join(root, "deps"))
	if artifact < 0 || deps < 0 || artifact > deps {
		t.Errorf("unexpected inputs listing %q", out)
	}
	for _, size := range []string{"3 B", "2 B"} {
		if !strings.Contains(out, size) {
			t.Errorf("expected size %s in %q", size, out)
		}
	}

	if err := os.RemoveAll(filepath.Join(root, "deps")); err != nil {
		t.Fatal(err)
	}
	out, _, err = run(t, root, "inputs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "missing") {
		t.Errorf("expected missing marker in %q", out)
	}
}

func TestStatus_NoRecord(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No runs recorded yet") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMissingConfig(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "package")
	if err == nil || !strings.Contains(err.Error(), "uberpack init") {
		t.Errorf("expected hint to run init, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "v1.2.3") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestPackage_StagingInsideInputRejected(t *testing.T) {
	root := newProject(t)
	// The project root holds target/uber-exploded, which a run would wipe
	writeConfigDeps(t, root, "deps", ".")

	_, _, err := run(t, root, "package")
	if err == nil || !strings.Contains(err.Error(), "staging directory is inside input directory") {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "deps", "lib-a.jar")); err != nil {
		t.Errorf("inputs must be untouched: %v", err)
	}
}

func TestWait_ReturnsNextRun(t *testing.T) {
	root := newProject(t)
	if _, _, err := run(t, root, "package"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := run(t, root, "wait", "--timeout", "10s", "--poll-interval", "20ms")
		done <- err
	}()

	// The earlier record must not satisfy the wait
	select {
	case err := <-done:
		t.Fatalf("wait returned before a new run: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	if _, _, err := run(t, root, "package"); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected wait to succeed, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("wait did not observe the new run")
	}
}

func TestWait_FailedRun(t *testing.T) {
	root := newProject(t)
	if err := os.RemoveAll(filepath.Join(root, "deps")); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := run(t, root, "wait", "--timeout", "10s", "--poll-interval", "20ms")
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)
	run(t, root, "package")

	err := <-done
	if err == nil || !strings.Contains(err.Error(), string(types.RunStateFailed)) {
		t.Errorf("expected failed run error, got %v", err)
	}
}

func TestWait_TimesOut(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "wait", "--timeout", "100ms", "--poll-interval", "20ms")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout, got %v", err)
	}
}
