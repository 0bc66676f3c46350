package fileutil

import (
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path by staging it in a hidden temp file in the
// same directory and renaming it into place, so readers never observe a
// partially written file.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	dir, base := filepath.Split(path)
	tmp := filepath.Join(dir, "."+base+".tmp")
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ConsumeMarker removes the marker file at path and reports whether it was
// present. A missing marker is not an error.
func ConsumeMarker(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates the directory and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
