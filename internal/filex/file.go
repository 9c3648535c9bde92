// Package filex provides small filesystem helpers shared by the asset cache,
// the image cache and the event packager. All helpers operate on an afero.Fs
// so callers can run against an in-memory filesystem in tests.
package filex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// EnsureDir creates dir (and parents) if it does not exist yet.
func EnsureDir(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// EnsureSubDir joins base and name, creates the directory and returns its path.
func EnsureSubDir(fs afero.Fs, base, name string) (string, error) {
	dir := filepath.Join(base, name)
	if err := EnsureDir(fs, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Exists reports whether path exists. Permission errors and other stat
// failures are treated as "does not exist".
func Exists(fs afero.Fs, path string) bool {
	if path == "" {
		return false
	}
	_, err := fs.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	return false
}

// UniqueName returns path if nothing exists there, otherwise the first
// "name-1.ext", "name-2.ext", ... variant that is free. Used when a legacy
// rename would collide with a file that is already present.
func UniqueName(fs afero.Fs, path string) string {
	if !Exists(fs, path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !Exists(fs, candidate) {
			return candidate
		}
	}
}

// RemoveIfExists deletes path, ignoring the case where it is already gone.
func RemoveIfExists(fs afero.Fs, path string) error {
	err := fs.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", path, err)
}
