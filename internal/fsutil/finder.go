// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrStop can be returned from a WalkFunc to end the walk early. Walk
// returns nil in that case.
var ErrStop = errors.New("stop walking")

// WalkFunc is called for every regular file reached by Walk. rel is the
// path relative to the walk root, using the host separator.
type WalkFunc func(path, rel string) error

// Walk visits every file under root, following symbolic links. A directory
// is entered at most once, keyed by its resolved real path, so symlink
// cycles terminate. Entries are visited in lexical order. Unreadable
// subdirectories and dangling links are passed to onError and skipped.
func Walk(root string, fn WalkFunc, onError func(path string, err error)) error {
	w := &walker{fn: fn, onError: onError, visited: make(map[string]struct{})}
	err := w.dir(root, "")
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

type walker struct {
	fn      WalkFunc
	onError func(string, error)
	visited map[string]struct{}
}

func (w *walker) dir(path, rel string) error {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return err
	}
	if _, seen := w.visited[real]; seen {
		return nil
	}
	w.visited[real] = struct{}{}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childPath := filepath.Join(path, e.Name())
		childRel := filepath.Join(rel, e.Name())
		info, err := os.Stat(childPath)
		if err != nil {
			w.skip(childPath, err)
			continue
		}
		if info.IsDir() {
			if err := w.dir(childPath, childRel); err != nil {
				if errors.Is(err, ErrStop) {
					return err
				}
				w.skip(childPath, err)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := w.fn(childPath, childRel); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) skip(path string, err error) {
	if w.onError != nil {
		w.onError(path, err)
	}
}

// ListFilesByExtension returns the regular files directly inside dir whose
// names end with extension, sorted by name. Subdirectories are not searched.
func ListFilesByExtension(dir string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// IsRegularFile reports whether path exists and is a regular file after
// following symbolic links.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
