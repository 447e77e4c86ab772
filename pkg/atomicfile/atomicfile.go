// Package atomicfile writes files so that a reader only ever sees the old
// contents or the complete new contents, never a partial write.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TempSuffix is appended to the destination path for the staging file. A
// leftover staging file means the last write did not complete.
const TempSuffix = ".tmp"

// Writer performs the temp-write, fsync, rename sequence. The zero value is
// not usable; start from Default.
type Writer struct {
	// Retries is the number of rename attempts before falling back to
	// remove-then-rename.
	Retries int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration

	Rename func(oldpath, newpath string) error
	Remove func(path string) error
	Sleep  func(time.Duration)
}

// Default renames up to five times, backing off 50ms, 100ms, ...
var Default = Writer{
	Retries: 5,
	Backoff: 50 * time.Millisecond,
	Rename:  os.Rename,
	Remove:  os.Remove,
	Sleep:   time.Sleep,
}

// WriteFile writes data to path using Default.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	return Default.WriteFile(path, data, perm)
}

// WriteFile stages data in path+TempSuffix, syncs it to disk and moves it
// over path. When every rename attempt fails (a locked destination on some
// platforms) it removes the destination and renames once more. If that fails
// too the staging file is left in place for recovery.
func (w Writer) WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: create dir: %w", err)
	}

	tmp := path + TempSuffix
	if err := writeSynced(tmp, data, perm); err != nil {
		return err
	}

	retries := w.Retries
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := 0; i < retries; i++ {
		if err = w.Rename(tmp, path); err == nil {
			syncDir(dir)
			return nil
		}
		if i < retries-1 && w.Sleep != nil {
			w.Sleep(w.Backoff * time.Duration(i+1))
		}
	}

	if rmErr := w.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return fmt.Errorf("atomicfile: replace %s: %w (remove: %v)", path, err, rmErr)
	}
	if err := w.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomicfile: replace %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

func writeSynced(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("atomicfile: open temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("atomicfile: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("atomicfile: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("atomicfile: close temp: %w", err)
	}
	return nil
}

// syncDir flushes the directory entry so the rename itself survives a crash.
// Not every platform supports syncing a directory; failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
