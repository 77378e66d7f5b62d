package geocode

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the override file at path into g whenever it changes, until
// ctx is done. The parent directory is watched so files replaced by rename
// are still picked up. A file that fails to parse keeps the previous entries.
func (g *GazetteerProvider) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return eris.Wrap(err, "geocode: watch path")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "geocode: create watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return eris.Wrapf(err, "geocode: watch %s", filepath.Dir(abs))
	}

	go g.watchLoop(ctx, w, abs)
	zap.L().Info("geocode: watching gazetteer overrides", zap.String("path", abs))
	return nil
}

func (g *GazetteerProvider) watchLoop(ctx context.Context, w *fsnotify.Watcher, path string) {
	defer w.Close() //nolint:errcheck

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := g.Reload(path); err != nil {
					zap.L().Warn("geocode: gazetteer reload failed, keeping previous entries", zap.Error(err))
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			zap.L().Error("geocode: watcher error", zap.Error(err))
		}
	}
}
