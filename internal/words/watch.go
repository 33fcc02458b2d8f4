package words

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// reloadDelay debounces bursts of writes from editors.
var reloadDelay = 500 * time.Millisecond

// Watch reloads b from path whenever the file is written or re-created.
// It blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are noticed too.
func Watch(ctx context.Context, path string, b *Bank) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	log.Info().Str("file", target).Msg("watching word list")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("word list changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, func() { reload(target, b) })

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("word list watcher")
		}
	}
}

func reload(path string, b *Bank) {
	list, err := ReadFile(path)
	if err == nil {
		err = b.Replace(list)
	}
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("reload word list; keeping previous list")
		return
	}
	log.Info().Str("file", path).Int("words", b.Len()).Msg("word list reloaded")
}
