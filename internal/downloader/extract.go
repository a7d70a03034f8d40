package downloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

func isZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// extractZip unpacks archive into a staging directory next to it, removes
// the archive and moves every top-level entry into destDir, replacing
// existing entries of the same name. It returns the moved names.
func extractZip(archive, destDir string) ([]string, error) {
	staging := strings.TrimSuffix(archive, filepath.Ext(archive)) + ".extract"
	if err := os.RemoveAll(staging); err != nil {
		return nil, err
	}
	if err := unzip(archive, staging); err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	if err := os.Remove(archive); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return nil, err
	}
	var moved []string
	for _, e := range entries {
		target := filepath.Join(destDir, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return moved, err
		}
		if err := os.Rename(filepath.Join(staging, e.Name()), target); err != nil {
			return moved, err
		}
		moved = append(moved, e.Name())
	}
	return moved, os.RemoveAll(staging)
}

func unzip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(dir, f.Name)
		rel, err := filepath.Rel(dir, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		if rel == "." {
			// "./" names the archive root.
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
