package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the dataset whenever the CSV changes on disk. We watch
// the parent directory rather than the file itself because most editors
// and deploy scripts replace the file atomically (write temp + rename),
// which would otherwise orphan the watch. Events are debounced so one
// save does not trigger a burst of reloads.
//
// onChange runs on the watcher goroutine; it should hand off heavy work
// itself if it needs to.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	go func() {
		defer w.Close()

		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if pending && !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounce)
				pending = true
			case <-timer.C:
				pending = false
				onChange()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
				// Watcher errors are transient on the platforms we care
				// about; the next event still arrives, so just keep going.
			}
		}
	}()

	return nil
}
