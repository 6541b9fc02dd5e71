package dataset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

// WriteAtomic replaces path with data by writing a temp file in the same directory,
// syncing it and renaming it over path. written is false when path already holds data.
// Any failure wraps common.ErrMergeWriteFailed and leaves path untouched.
func WriteAtomic(path string, data []byte) (written bool, err error) {
	if cur, rerr := os.ReadFile(path); rerr == nil && bytes.Equal(cur, data) {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("%w: create dir %s: %v", common.ErrMergeWriteFailed, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, fmt.Errorf("%w: create temp: %v", common.ErrMergeWriteFailed, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("%w: write temp: %v", common.ErrMergeWriteFailed, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("%w: sync temp: %v", common.ErrMergeWriteFailed, err)
	}
	if err = tmp.Close(); err != nil {
		return false, fmt.Errorf("%w: close temp: %v", common.ErrMergeWriteFailed, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return false, fmt.Errorf("%w: chmod temp: %v", common.ErrMergeWriteFailed, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return false, fmt.Errorf("%w: rename onto %s: %v", common.ErrMergeWriteFailed, path, err)
	}
	return true, nil
}

// Save encodes ds and writes it atomically.
func Save(path string, ds *Dataset) (bool, error) {
	data, err := Encode(ds)
	if err != nil {
		return false, fmt.Errorf("%w: encode: %v", common.ErrMergeWriteFailed, err)
	}
	return WriteAtomic(path, data)
}
