package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// DirPublisher copies files into a directory. Keys can't escape it.
type DirPublisher struct {
	root *os.Root
}

func NewDirPublisher(dir string) (*DirPublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &DirPublisher{root: root}, nil
}

func (p *DirPublisher) Publish(ctx context.Context, key, localPath string) (string, error) {
	if p.root == nil {
		return "", errors.New("root already closed")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = src.Close()
	}()

	if dir := path.Dir(key); dir != "." {
		if err := p.root.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	dst, err := p.root.Create(key)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", key, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("copying %s: %w", key, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", key, err)
	}

	loc := filepath.Join(p.root.Name(), filepath.FromSlash(key))
	slog.InfoContext(ctx, "output file saved", "path", loc)
	return loc, nil
}

func (p *DirPublisher) Close() error {
	if p.root == nil {
		return errors.New("publisher already closed")
	}
	err := p.root.Close()
	p.root = nil
	return err
}
