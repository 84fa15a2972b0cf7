package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SeedWatcher re-seeds the catalog whenever the seed file is written.
// Sessions already open keep the questions they started with.
type SeedWatcher struct {
	path    string
	w       assessmentWriter
	log     *zap.Logger
	watcher *fsnotify.Watcher
}

// NewSeedWatcher starts watching path's directory; editors often replace the
// file rather than write it in place.
func NewSeedWatcher(w assessmentWriter, path string, log *zap.Logger) (*SeedWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SeedWatcher{path: abs, w: w, log: log.With(zap.String("seed_file", abs)), watcher: fw}, nil
}

// Run blocks until ctx ends. Reload failures are logged; the previous
// catalog stays in place.
func (s *SeedWatcher) Run(ctx context.Context) error {
	defer s.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			n, err := SeedFile(ctx, s.w, s.path)
			if err != nil {
				s.log.Warn("catalog reload failed", zap.Error(err))
				continue
			}
			s.log.Info("catalog reloaded", zap.Int("assessments", n))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("seed watcher", zap.Error(err))
		}
	}
}
