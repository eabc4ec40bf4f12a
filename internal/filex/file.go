// Package filex holds small filesystem helpers for the upload spool.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by Spool when the input exceeds the limit.
var ErrTooLarge = errors.New("file too large")

// EnsureDir creates dir (relative paths are resolved against the working
// directory) and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Spool copies r into a new temp file in dir, writing at most limit bytes.
// The returned file is positioned at its start. The caller must call
// cleanup, which closes and removes the file; cleanup is safe to call on
// error too.
func Spool(dir, pattern string, r io.Reader, limit int64) (f *os.File, size int64, cleanup func(), err error) {
	cleanup = func() {}

	f, err = os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, 0, cleanup, fmt.Errorf("create temp: %w", err)
	}
	cleanup = func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	size, err = io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, 0, cleanup, fmt.Errorf("write temp: %w", err)
	}
	if size > limit {
		return nil, size, cleanup, ErrTooLarge
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, cleanup, fmt.Errorf("seek temp: %w", err)
	}
	return f, size, cleanup, nil
}
