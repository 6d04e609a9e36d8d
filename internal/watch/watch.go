// Package watch reloads model artifacts when their files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc is called after the file it is registered for changes.
type ReloadFunc func(ctx context.Context, path string)

// Watcher calls a ReloadFunc when a watched file is written, created,
// removed or renamed. Bursts of events within Debounce collapse into one call.
type Watcher struct {
	Debounce time.Duration
	Log      *zap.Logger

	targets map[string]ReloadFunc
}

func New(log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{Debounce: 250 * time.Millisecond, Log: log, targets: map[string]ReloadFunc{}}
}

// Add registers path. Paths are compared after filepath.Abs.
func (w *Watcher) Add(path string, fn ReloadFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.targets[abs] = fn
	return nil
}

func (w *Watcher) Len() int { return len(w.targets) }

// Run watches until ctx is done. The parent directories are watched rather
// than the files so that atomic replace-by-rename is seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dirs := map[string]bool{}
	for path := range w.targets {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warn("file watch error", zap.Error(err))
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			fn, watched := w.targets[path]
			if !watched || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.Log.Debug("model file changed", zap.String("path", path), zap.String("op", event.Op.String()))
			mu.Lock()
			if t, ok := timers[path]; ok && t.Stop() {
				wg.Done()
			}
			wg.Add(1)
			var t *time.Timer
			t = time.AfterFunc(w.Debounce, func() {
				defer wg.Done()
				mu.Lock()
				if timers[path] == t {
					delete(timers, path)
				}
				mu.Unlock()
				fn(ctx, path)
			})
			timers[path] = t
			mu.Unlock()
		}
	}
}
