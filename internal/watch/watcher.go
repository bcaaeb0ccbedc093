// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"revdiff/internal/errors"
	"revdiff/internal/history"
)

// Saver is the part of history.History the watcher needs
type Saver interface {
	Save(docID, text, author, message string) (*history.Version, error)
}

type Options struct {
	// Quiet period after the last write before a version is saved
	Debounce time.Duration
	Author   string
	// Called after every saved version
	OnSave func(*history.Version)
}

// Watcher saves a new version of a document whenever its file settles
// after a change
type Watcher struct {
	docID   string
	path    string
	saver   Saver
	opts    Options
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func New(saver Saver, docID, path string, opts Options, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("adding directory to watcher: %w", err)
	}

	return &Watcher{
		docID:   docID,
		path:    abs,
		saver:   saver,
		opts:    opts,
		watcher: watcher,
		logger:  logger.With(zap.String("document", docID), zap.String("path", abs)),
	}, nil
}

// Run saves the current file content, then processes filesystem events
// until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if _, err := w.Snapshot(); err != nil {
		return err
	}

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.schedule(fire)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		case <-fire:
			if _, err := w.Snapshot(); err != nil {
				w.logger.Error("saving version", zap.Error(err))
			}
		}
	}
}

// Snapshot saves the file's current content. It returns nil without error
// when nothing changed since the latest version.
func (w *Watcher) Snapshot() (*history.Version, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", w.path, err)
	}

	v, err := w.saver.Save(w.docID, string(data), w.opts.Author, "autosave "+filepath.Base(w.path))
	if errors.Is(err, history.ErrUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w.logger.Info("autosaved", zap.Int("version", v.Number))
	if w.opts.OnSave != nil {
		w.opts.OnSave(v)
	}
	return v, nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// schedule restarts the debounce timer
func (w *Watcher) schedule(fire chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
