package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zhouzirui/user-api/backend/internal/logger"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher notices edits made to the backing file by other processes.
type Watcher struct {
	store    *Store
	log      *logger.Logger
	onChange func()
	debounce time.Duration
}

// NewWatcher returns a Watcher that calls onChange whenever the file content
// no longer matches what store last wrote or what was on disk when Run began.
func NewWatcher(store *Store, log *logger.Logger, onChange func()) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{
		store:    store,
		log:      log,
		onChange: onChange,
		debounce: defaultDebounce,
	}
}

// SetDebounce changes how long the watcher waits for a burst of events to
// settle before reading the file.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file itself so atomic renames are observed.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := w.store.Seed(); err != nil {
		return err
	}
	w.log.Info("watching users file", "path", w.store.Path())

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("users file watcher error", "error", err)
		case <-fire:
			fire = nil
			w.check()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.store.Path() {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}

func (w *Watcher) check() {
	data, err := os.ReadFile(w.store.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Warn("read users file after change", "error", err)
		return
	}
	if !w.store.Changed(data) {
		return
	}
	w.log.Info("users file changed externally", "path", w.store.Path())
	if w.onChange != nil {
		w.onChange()
	}
}
