package registry

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeusync/hive/internal/core/observability/log"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a registry when template or naming files change under its
// search paths. Bursts of changes are collapsed into one reload.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
	logger   log.Log
	debounce time.Duration

	pendingMu sync.Mutex
	pending   bool

	reloads chan error
	done    chan struct{}
	stop    sync.Once
}

// NewWatcher returns a watcher for r. A zero debounce uses 200ms.
func NewWatcher(r *Registry, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		registry: r,
		fsw:      fsw,
		logger:   r.logger.With(log.String("component", "registry-watcher")),
		debounce: debounce,
		reloads:  make(chan error, 1),
		done:     make(chan struct{}),
	}, nil
}

// Reloaded receives the result of every reload. A reload result nobody reads
// is replaced by the next one.
func (w *Watcher) Reloaded() <-chan error { return w.reloads }

// Start watches every search path and processes events until ctx ends or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.registry.SearchPaths() {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	go w.run(ctx)
	w.logger.Info("registry watcher started", log.Strings("paths", w.registry.SearchPaths()), log.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// a missing search path is not watched
			if path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", log.String("path", path), log.Error(err))
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("registry watcher error", log.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			w.markPending()
			return
		}
	}
	if !isRegistryFile(event.Name) || event.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("registry file changed", log.String("path", event.Name), log.String("op", event.Op.String()))
	w.markPending()
}

func (w *Watcher) markPending() {
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

// flush reloads the registry when a change arrived during the last tick.
func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()
	if !pending {
		return
	}
	err := w.registry.Load(ctx)
	if err != nil {
		w.logger.Warn("registry reload reported problems", log.Error(err))
	} else {
		w.logger.Info("registry reloaded", log.Int("types", len(w.registry.ComponentTypes())))
	}
	select {
	case <-w.reloads:
	default:
	}
	w.reloads <- err
}
