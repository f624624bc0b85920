package confloader

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// Watcher calls its handlers with the absolute path of a watched file
// each time that file is written or created.
type Watcher struct {
	fw  *fsnotify.Watcher
	log logger.Logger

	files map[string]bool

	mu       sync.Mutex
	handlers []func(path string)
	closed   sync.Once
}

// NewWatcher watches paths. Their parent directories must exist; the
// files themselves may not exist yet. A nil log uses logger.Default.
func NewWatcher(log logger.Logger, paths ...string) (*Watcher, error) {
	if log == nil {
		log = logger.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("confloader: %w", err)
	}
	w := &Watcher{fw: fw, log: log, files: make(map[string]bool, len(paths))}

	// Editors often replace a file by rename, which only the directory
	// watch sees.
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("confloader: %w", err)
		}
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("confloader: watch %s: %w", abs, err)
		}
		w.files[abs] = true
		log.Debug("watching file", "path", abs)
	}
	return w, nil
}

// OnChange registers fn. Handlers may be added while Run is active.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	w.handlers = append(w.handlers, fn)
	w.mu.Unlock()
}

// Run dispatches change events until ctx is done, then closes the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			w.log.Debug("file changed", "path", abs, "op", ev.Op.String())
			w.dispatch(abs)
		}
	}
}

// Close releases the underlying watch. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() { err = w.fw.Close() })
	return err
}

func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	handlers := slices.Clone(w.handlers)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(path)
	}
}
