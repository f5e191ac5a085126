// Package walk iterates regular files of a directory tree. Packaging uses
// it to measure scan targets.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
)

// Entry is a regular file found during the walk
type Entry interface {
	// Path is the file name prefixed with the name of the walked root
	Path() string
	Stat() (fs.FileInfo, error)
}

// Roots walks all roots one after another. See FS for details.
func Roots(ctx context.Context, roots ...*os.Root) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			for entry, err := range FS(ctx, root.FS(), root.Name()) {
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks root and yields every regular file or an error
// when the file information can't be read. Symlinks are not followed.
// A canceled context stops the walk silently.
func FS(ctx context.Context, root fs.FS, name string) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		_ = fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			e := entry{path: filepath.Join(name, path)}
			if err == nil {
				e.info, e.err = d.Info()
				if e.err == nil && !e.info.Mode().IsRegular() {
					return nil
				}
			} else {
				e.err = err
			}
			if !yield(e, e.err) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// Size returns the total size of regular files under path. A path
// pointing to a file returns the size of the file.
func Size(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	root, err := os.OpenRoot(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = root.Close()
	}()

	var total int64
	for e, err := range Roots(ctx, root) {
		if err != nil {
			return total, fmt.Errorf("measuring %s: %w", e.Path(), err)
		}
		info, _ := e.Stat()
		total += info.Size()
	}
	return total, ctx.Err()
}

type entry struct {
	path string
	info fs.FileInfo
	err  error
}

func (e entry) Path() string {
	return e.path
}

func (e entry) Stat() (fs.FileInfo, error) {
	return e.info, e.err
}
