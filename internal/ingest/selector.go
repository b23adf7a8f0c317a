package ingest

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// SelectFile returns the first regular file in dir, ordered by name, whose base
// name matches include (empty matches everything) and does not match exclude
// (empty excludes nothing). A missing or unreadable directory yields ok=false.
// Symlinks are followed.
func SelectFile(dir, include, exclude string) (path string, ok bool) {
	entries, err := os.ReadDir(dir) // sorted by filename
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if include != "" {
			if match, err := doublestar.Match(include, e.Name()); err != nil || !match {
				continue
			}
		}
		if exclude != "" {
			if match, err := doublestar.Match(exclude, e.Name()); err != nil || match {
				continue
			}
		}
		p := filepath.Join(dir, e.Name())
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return p, true
	}
	return "", false
}
