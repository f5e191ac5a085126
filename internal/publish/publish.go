// Package publish copies the files generated by a run to durable storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/verascan/internal/model"
)

type Publisher interface {
	// Publish stores the local file under key and returns its location
	Publish(ctx context.Context, key, localPath string) (string, error)
}

// FromConfig returns the configured publishers. Nothing configured
// means no publishing at all, the files stay in the workdir.
func FromConfig(ctx context.Context, cfg model.Publish) ([]Publisher, error) {
	var publishers []Publisher
	if cfg.Dir != "" {
		p, err := NewDirPublisher(cfg.Dir)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}
	if cfg.S3.Enabled() {
		p, err := NewMinioPublisher(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}
	return publishers, nil
}

// Key returns the object key of a file. Files inside the workdir keep
// their relative path, others are stored by their base name.
func Key(runID, workdir, localPath string) string {
	rel, err := filepath.Rel(workdir, localPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(localPath)
	}
	return path.Join(runID, filepath.ToSlash(rel))
}

// All publishes every file by every publisher. A failure does not stop
// the others, all of them are returned joined.
func All(ctx context.Context, runID, workdir string, files []model.OutputFileRecord, publishers []Publisher) ([]model.OutputFileRecord, error) {
	var published []model.OutputFileRecord
	var errs []error
	for _, p := range publishers {
		for _, f := range files {
			key := Key(runID, workdir, f.Path)
			loc, err := p.Publish(ctx, key, f.Path)
			if err != nil {
				errs = append(errs, fmt.Errorf("publishing %s: %w", f.Path, err))
				continue
			}
			slog.DebugContext(ctx, "published", "kind", f.Kind, "location", loc)
			published = append(published, model.OutputFileRecord{Kind: f.Kind, Path: loc})
		}
	}
	return published, errors.Join(errs...)
}

// Close closes all publishers holding resources
func Close(publishers []Publisher) error {
	var errs []error
	for _, p := range publishers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
