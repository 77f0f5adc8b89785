package archive_test

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uberpack/uberpack/pkg/archive"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func readArchive(t *testing.T, path string) (map[string]string, []string) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	contents := make(map[string]string)
	var order []string
	for _, f := range r.File {
		order = append(order, f.Name)
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		contents[f.Name] = string(data)
	}
	return contents, order
}

func TestZipArchiver_Create(t *testing.T) {
	staging := t.TempDir()
	writeTree(t, staging, map[string]string{
		"app/launcher/Main.class": "main",
		"launcher.jar":            "container",
		"modules.txt":             "app/app.Main\nlauncher.jar\n",
	})
	out := filepath.Join(t.TempDir(), "uber.jar")

	z := archive.NewZipArchiver(nil)
	err := z.Create(context.Background(), archive.CreateOptions{
		ArchivePath: out,
		SourceDir:   staging,
		MainClass:   "app.launcher.Main",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	contents, order := readArchive(t, out)
	if order[0] != "META-INF/" || order[1] != "META-INF/MANIFEST.MF" {
		t.Errorf("expected manifest first, got %v", order[:2])
	}
	if !strings.Contains(contents["META-INF/MANIFEST.MF"], "Main-Class: app.launcher.Main\r\n") {
		t.Errorf("missing main class in manifest: %q", contents["META-INF/MANIFEST.MF"])
	}
	for _, name := range []string{"app/launcher/Main.class", "launcher.jar", "modules.txt"} {
		if _, ok := contents[name]; !ok {
			t.Errorf("expected %s in archive", name)
		}
	}
	if !contains(order, "app/launcher/") {
		t.Error("expected directory entries")
	}
}

func TestZipArchiver_UpdateLastWriteWins(t *testing.T) {
	staging := t.TempDir()
	writeTree(t, staging, map[string]string{"modules.txt": "m"})
	dirA := t.TempDir()
	writeTree(t, dirA, map[string]string{"x.art": "from-a", "a.art": "only-a"})
	dirB := t.TempDir()
	writeTree(t, dirB, map[string]string{"x.art": "from-b", "b.art": "only-b"})
	out := filepath.Join(t.TempDir(), "uber.jar")

	ctx := context.Background()
	z := archive.NewZipArchiver(nil)
	if err := z.Create(ctx, archive.CreateOptions{ArchivePath: out, SourceDir: staging, MainClass: "M"}); err != nil {
		t.Fatal(err)
	}
	if err := z.Update(ctx, out, dirA); err != nil {
		t.Fatalf("update A failed: %v", err)
	}
	if err := z.Update(ctx, out, dirB); err != nil {
		t.Fatalf("update B failed: %v", err)
	}

	contents, order := readArchive(t, out)
	if contents["x.art"] != "from-b" {
		t.Errorf("expected later layer to win, got %q", contents["x.art"])
	}
	if contents["a.art"] != "only-a" || contents["b.art"] != "only-b" {
		t.Errorf("expected unique entries from both layers, got %v", contents)
	}
	if count(order, "x.art") != 1 {
		t.Errorf("expected a single x.art entry, got %v", order)
	}
	if contents["modules.txt"] != "m" {
		t.Error("expected staging content to survive layering")
	}
}

func TestZipArchiver_UpdateKeepsArchiveManifest(t *testing.T) {
	staging := t.TempDir()
	writeTree(t, staging, map[string]string{"modules.txt": "m"})
	layer := t.TempDir()
	writeTree(t, layer, map[string]string{"META-INF/MANIFEST.MF": "Main-Class: Other\r\n"})
	out := filepath.Join(t.TempDir(), "uber.jar")

	ctx := context.Background()
	z := archive.NewZipArchiver(nil)
	if err := z.Create(ctx, archive.CreateOptions{ArchivePath: out, SourceDir: staging, MainClass: "Launcher"}); err != nil {
		t.Fatal(err)
	}
	if err := z.Update(ctx, out, layer); err != nil {
		t.Fatal(err)
	}

	contents, _ := readArchive(t, out)
	if !strings.Contains(contents["META-INF/MANIFEST.MF"], "Main-Class: Launcher") {
		t.Errorf("layer replaced archive manifest: %q", contents["META-INF/MANIFEST.MF"])
	}
}

func TestZipArchiver_UpdateMissingArchive(t *testing.T) {
	z := archive.NewZipArchiver(nil)
	err := z.Update(context.Background(), filepath.Join(t.TempDir(), "missing.jar"), t.TempDir())
	if err == nil {
		t.Fatal("expected error updating a missing archive")
	}
}

func TestZipArchiver_UpdateMissingLayer(t *testing.T) {
	staging := t.TempDir()
	out := filepath.Join(t.TempDir(), "uber.jar")
	z := archive.NewZipArchiver(nil)
	if err := z.Create(context.Background(), archive.CreateOptions{ArchivePath: out, SourceDir: staging}); err != nil {
		t.Fatal(err)
	}

	if err := z.Update(context.Background(), out, filepath.Join(staging, "nope")); err == nil {
		t.Fatal("expected error for missing layer directory")
	}
}

func TestZipArchiver_CancelledContext(t *testing.T) {
	staging := t.TempDir()
	writeTree(t, staging, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := archive.NewZipArchiver(nil).Create(ctx, archive.CreateOptions{
		ArchivePath: filepath.Join(t.TempDir(), "uber.jar"),
		SourceDir:   staging,
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func contains(list []string, s string) bool {
	return count(list, s) > 0
}

func count(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
