// Package filestore serves configstore keys from a directory holding one
// file per key, the layout produced by mounted Kubernetes secrets and
// config maps. The directory is reloaded whenever fsnotify reports a change.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ggoodman/headerauth-go/configstore"
)

// Store is a directory-backed configstore.Store.
type Store struct {
	dir      string
	log      *slog.Logger
	onReload func()

	mu     sync.RWMutex
	values map[string]string

	watchOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

var _ configstore.Store = (*Store)(nil)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithOnReload registers a callback run after every successful reload.
func WithOnReload(fn func()) Option { return func(s *Store) { s.onReload = fn } }

// New loads dir. Call Watch to pick up later changes.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, done: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every file in the directory. Hidden entries and
// subdirectories are skipped; trailing whitespace is trimmed from values.
func (s *Store) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("filestore: read dir: %w", err)
	}
	values := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := filepath.Join(s.dir, name)
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("filestore: read %s: %w", name, err)
		}
		values[name] = strings.TrimRight(string(b), "\r\n")
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	if s.onReload != nil {
		s.onReload()
	}
	return nil
}

func (s *Store) Lookup(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Watch starts reloading on filesystem events until ctx is done or Close is
// called. Calling Watch more than once has no further effect.
func (s *Store) Watch(ctx context.Context) error {
	var err error
	s.watchOnce.Do(func() {
		var w *fsnotify.Watcher
		w, err = fsnotify.NewWatcher()
		if err != nil {
			err = fmt.Errorf("filestore: watcher: %w", err)
			return
		}
		if err = w.Add(s.dir); err != nil {
			_ = w.Close()
			err = fmt.Errorf("filestore: watch %s: %w", s.dir, err)
			return
		}
		go s.run(ctx, w)
	})
	return err
}

func (s *Store) run(ctx context.Context, w *fsnotify.Watcher) {
	defer func() {
		_ = w.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.WarnContext(ctx, "configstore.file.reload.fail", slog.String("err", err.Error()))
				continue
			}
			s.log.DebugContext(ctx, "configstore.file.reload.ok", slog.String("event", ev.String()))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				s.log.WarnContext(ctx, "configstore.file.watch.error", slog.String("err", err.Error()))
				continue
			}
			_ = s.Reload()
		}
	}
}

// Close stops the watcher.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
