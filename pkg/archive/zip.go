package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/uberpack/uberpack/pkg/logger"
)

const (
	manifestDir  = "META-INF/"
	manifestPath = "META-INF/MANIFEST.MF"
)

// ZipArchiver writes jar-compatible zip archives natively
type ZipArchiver struct {
	logger logger.Logger
}

// NewZipArchiver creates the native archiver
func NewZipArchiver(log logger.Logger) *ZipArchiver {
	if log == nil {
		log = logger.Discard()
	}
	return &ZipArchiver{logger: log.WithTarget("zip")}
}

// Create writes META-INF/MANIFEST.MF with the main class, then every
// directory and file below opts.SourceDir.
func (z *ZipArchiver) Create(ctx context.Context, opts CreateOptions) error {
	entries, err := collectEntries(opts.SourceDir)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(opts.ArchivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(out)
	if err := writeManifest(zw, opts.MainClass); err != nil {
		zw.Close()
		out.Close()
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			out.Close()
			return err
		}
		if e.name == manifestDir || e.name == manifestPath {
			continue
		}
		if err := writeEntry(zw, e); err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	z.logger.Debug("Created archive",
		logger.WithField("path", opts.ArchivePath),
		logger.WithField("entries", len(entries)))
	return out.Close()
}

// Update rewrites the archive with dir's tree merged in. A replaced entry
// keeps its position; new entries are appended in lexical order. The
// archive's own manifest is never replaced by a layer.
func (z *ZipArchiver) Update(ctx context.Context, archivePath, dir string) error {
	layer, err := collectEntries(dir)
	if err != nil {
		return err
	}
	byName := make(map[string]entry, len(layer))
	for _, e := range layer {
		if e.name == manifestDir || e.name == manifestPath {
			continue
		}
		byName[e.name] = e
	}

	src, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+".*.layer")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	written := make(map[string]bool, len(byName))
	replaced := 0

	for _, f := range src.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e, ok := byName[f.Name]; ok {
			if err := writeEntry(zw, e); err != nil {
				return fmt.Errorf("failed to replace %s: %w", f.Name, err)
			}
			written[f.Name] = true
			if !e.dir {
				replaced++
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	added := 0
	for _, e := range layer {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := byName[e.name]; !ok || written[e.name] {
			continue
		}
		if err := writeEntry(zw, e); err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		written[e.name] = true
		if !e.dir {
			added++
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Windows refuses to rename over an open file
	src.Close()
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return err
	}
	committed = true

	z.logger.Debug("Layered directory into archive",
		logger.WithField("layer", dir),
		logger.WithField("added", added),
		logger.WithField("replaced", replaced))
	return nil
}

type entry struct {
	name string
	path string
	dir  bool
	info fs.FileInfo
}

// collectEntries walks root in lexical order. Directory names end in "/"
// as in the jar format; the root itself is omitted.
func collectEntries(root string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		if d.IsDir() {
			name += "/"
		} else if !info.Mode().IsRegular() {
			return nil
		}
		entries = append(entries, entry{name: name, path: path, dir: d.IsDir(), info: info})
		return nil
	})
	return entries, err
}

func writeManifest(zw *zip.Writer, mainClass string) error {
	if _, err := zw.CreateHeader(&zip.FileHeader{Name: manifestDir, Method: zip.Store}); err != nil {
		return err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: manifestPath, Method: zip.Deflate})
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Manifest-Version: 1.0\r\n")
	b.WriteString("Created-By: uberpack\r\n")
	if mainClass != "" {
		b.WriteString("Main-Class: " + mainClass + "\r\n")
	}
	b.WriteString("\r\n")

	_, err = io.WriteString(w, b.String())
	return err
}

func writeEntry(zw *zip.Writer, e entry) error {
	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return err
	}
	header.Name = e.name
	if e.dir {
		header.Method = zip.Store
		_, err := zw.CreateHeader(header)
		return err
	}
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
