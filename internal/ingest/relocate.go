package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MoveFileToDir moves srcPath into dstDir, creating dstDir if needed and
// replacing any file of the same name already there. It returns the new path.
func MoveFileToDir(srcPath string, dstDir string) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", fmt.Errorf("dstDir is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dstDir, err)
	}
	dstPath := filepath.Join(dstDir, filepath.Base(srcPath))

	// os.Rename replaces an existing destination.
	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}

	// Fallback for cross-device moves: copy next to the target, rename over it,
	// then drop the source.
	if err := copyReplace(srcPath, dstPath); err != nil {
		return "", err
	}
	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("remove %s after copy: %w", srcPath, err)
	}
	return dstPath, nil
}

func copyReplace(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dstPath), "."+filepath.Base(dstPath)+".*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", filepath.Dir(dstPath), err)
	}
	tmp := out.Name()
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", srcPath, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", srcPath, closeErr)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", dstPath, err)
	}
	return nil
}
