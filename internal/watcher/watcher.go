// Package watcher reports new subtitle files dropped into watched folders.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/dimkroon/translate-subs/pkg/log"
)

// DefaultSettle is how long a file must stay unchanged before it is reported.
const DefaultSettle = 500 * time.Millisecond

// EventHandler is called once per settled file.
type EventHandler func(ctx context.Context, filePath string) error

type Watcher struct {
	dirs    []string
	accepts func(path string) bool
	handler EventHandler
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New watches dirs (not recursively) for created or rewritten files that
// match accepts.
func New(dirs []string, accepts func(path string) bool, handler EventHandler, settle time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("add watch path %s: %w", dir, err)
		}
	}

	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dirs:    dirs,
		accepts: accepts,
		handler: handler,
		settle:  settle,
		watcher: fw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start blocks until ctx is done or the underlying watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	log.Info("File watcher started, monitoring: %v", w.dirs)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.wg.Wait()
			log.Info("File watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.accepts != nil && !w.accepts(event.Name) {
				log.Debug("Ignoring %s", event.Name)
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.Error("Watcher error: %v", err)
		}
	}
}

// schedule reports path once no event arrived for it during the settle time.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		log.Info("New subtitle file detected: %s", path)
		if err := w.handler(ctx, path); err != nil {
			log.Error("Failed to handle %s: %v", path, err)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Stop closes the file watcher
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
