package redact

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader scrubs with the rules currently in a file and swaps them when
// the file changes. A file that fails to load keeps the previous rules.
type Reloader struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Scrubber]
	reloads atomic.Int64
}

// NewReloader loads path once. The initial load must succeed.
func NewReloader(path string, logger *zap.Logger) (*Reloader, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}
	r := &Reloader{path: abs, logger: logger}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Scrub uses the current rules.
func (r *Reloader) Scrub(text string) Result {
	return r.current.Load().Scrub(text)
}

// Reload reads the file now.
func (r *Reloader) Reload() error {
	s, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	r.current.Store(s)
	r.reloads.Add(1)
	return nil
}

// Reloads reports how many times rules were loaded successfully.
func (r *Reloader) Reloads() int64 { return r.reloads.Load() }

// Watch reloads on writes to the file until ctx is done. The parent
// directory is watched so editors that replace the file are picked up.
func (r *Reloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(r.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("redaction rules reload failed, keeping previous rules",
					zap.String("path", r.path), zap.Error(err))
				continue
			}
			r.logger.Info("redaction rules reloaded", zap.String("path", r.path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("rules watcher error", zap.Error(err))
		}
	}
}
