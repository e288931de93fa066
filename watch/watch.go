// Package watch reports changes to one state file. State files are replaced
// by rename, so the watcher observes the parent directory and filters by
// name.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the create+rename burst of one atomic save.
const DefaultDebounce = 100 * time.Millisecond

var ErrAlreadyStarted = errors.New("watch: already started")

// Watcher calls OnChange after the watched file settles.
type Watcher struct {
	mu       sync.Mutex
	fw       *fsnotify.Watcher
	dir      string
	name     string
	debounce time.Duration
	onChange func(path string)
	log      *zap.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New watches path. onChange runs on the watcher goroutine.
func New(path string, debounce time.Duration, onChange func(path string), log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		dir:      filepath.Dir(path),
		name:     filepath.Base(path),
		debounce: debounce,
		onChange: onChange,
		log:      log.With(zap.String("path", path)),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrAlreadyStarted
	}
	if err := w.fw.Add(w.dir); err != nil {
		return err
	}
	w.running = true
	go w.run(ctx)
	w.log.Debug("watching")
	return nil
}

// Stop ends the loop, waits for it and releases the fsnotify watcher.
// It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.running {
		w.running = false
		close(w.stopCh)
		w.mu.Unlock()
		<-w.doneCh
	} else {
		w.mu.Unlock()
	}
	if err := w.fw.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
		return err
	}
	return nil
}

// Done is closed when the loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("event", zap.Stringer("op", ev.Op))
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", zap.Error(err))

		case <-timer.C:
			w.onChange(filepath.Join(w.dir, w.name))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != w.name {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0
}
