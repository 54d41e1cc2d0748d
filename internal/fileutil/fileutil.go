package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// MaxSuffix bounds the numeric suffixes CreateUnique tries.
const MaxSuffix = 999

// CreateUnique creates base+ext in dir, or base_001+ext, base_002+ext, and so
// on when the name is taken. Files are created with O_EXCL so two writers can
// never pick the same name.
func CreateUnique(dir, base, ext string) (*os.File, string, error) {
	for n := 0; n <= MaxSuffix; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%03d%s", base, n, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, path, err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s%s after %d attempts", base, ext, MaxSuffix)
}

// NonEmpty returns the size of path and an error when the file is missing or empty.
func NonEmpty(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%s is empty", path)
	}
	return info.Size(), nil
}

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
