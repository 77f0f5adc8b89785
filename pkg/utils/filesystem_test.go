package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uberpack/uberpack/pkg/utils"
)

func TestRemoveDirectory_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	if err := utils.RemoveDirectory(missing); err != nil {
		t.Errorf("expected no error for missing directory, got %v", err)
	}
}

func TestCopyReader_Truncates(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(dst, []byte("a much longer old content"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := utils.CopyReader(strings.NewReader("new"), dst, 0644); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(dst)
	if string(data) != "new" {
		t.Errorf("expected truncated content, got %q", data)
	}
}

func TestListFiles_SkipsDirectoriesAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.jar", "a.jar", "b.jar"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := utils.ListFiles(dir, true)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "a.jar,b.jar,c.jar" {
		t.Errorf("unexpected listing %v", names)
	}
}

func TestGetDirectorySize_Recursive(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "x", "y"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, "x", "y", "z.txt"), []byte("zz"), 0644)
	os.WriteFile(filepath.Join(root, "top.txt"), []byte("t"), 0644)

	size, err := utils.GetDirectorySize(root)
	if err != nil || size != 3 {
		t.Errorf("expected size 3, got %d (%v)", size, err)
	}

	if _, err := utils.GetDirectorySize(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:     "512 B",
		2048:    "2.0 KB",
		1 << 20: "1.0 MB",
	}
	for in, want := range tests {
		if got := utils.FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %s, want %s", in, got, want)
		}
	}
}
