// Package storage owns filesystem concerns: sanitized names, directory
// management, and the template-driven library layout.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmoreras/trackfetch/internal/constants"
)

// Sanitize strips characters that are unsafe in file names and trims
// trailing dots and spaces.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimRight(mapped, ". ")
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// MoveFile renames src to dst, falling back to copy-and-delete when the two
// paths sit on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to move %s to %s: copy failed", src, dst)
	}

	return os.Remove(src)
}

func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, constants.FilePermissions)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

// DeleteFolderIfEmpty removes dirPath when it holds no entries. A missing
// directory is not an error.
func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

// PruneEmptyDirs removes empty directories from leaf up to (but not
// including) root. Used after retention deletes a library file.
func PruneEmptyDirs(leaf, root string) {
	dir := leaf
	for dir != root && strings.HasPrefix(dir, root) {
		if err := DeleteFolderIfEmpty(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
