package dashboard

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 2 * time.Second

// Watch reloads the dataset whenever a file matching one of patterns is
// written, created or renamed into place. Bursts of events within debounce
// trigger a single reload. The parent directories are watched rather than
// the files, so replacing a file by rename is seen too. Watch blocks until
// ctx is done.
func (s *Service) Watch(ctx context.Context, patterns []string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]struct{})
	for _, p := range patterns {
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = struct{}{}
		log.Printf("watching %s for %s", dir, filepath.Base(p))
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !matchAny(patterns, ev.Name) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		case <-timer.C:
			if _, changed, err := s.Load(ctx); err != nil {
				log.Printf("reload failed, keeping current dataset: %v", err)
			} else if changed {
				log.Printf("dataset reloaded after file change")
			}
		}
	}
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if filepath.Clean(p) == filepath.Clean(name) {
			return true
		}
	}
	return false
}
