package driver

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce batches editor-style write bursts into one dirty mark.
const watchDebounce = 500 * time.Millisecond

// Watch marks the engine dirty whenever the events drop file changes. The
// watch is on the file's directory so atomic replace (write temp, rename
// over) is seen as well; a change only flags the engine, the reload itself
// happens at the top of the next cycle.
func Watch(ctx context.Context, path string, engine *Engine) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)
	log.Printf("Driver: watching %s for timetable drops", target)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			log.Printf("Driver: drop file changed, marking timetable dirty")
			engine.MarkDirty()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Driver: watcher error: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
