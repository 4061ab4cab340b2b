package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher notifies when the current link under an artifact root is swapped.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *zap.Logger
}

func NewWatcher(root string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{root: root, debounce: debounce, logger: logger}
}

// Run blocks until ctx is done, calling onChange with the new version each
// time current resolves to a different bundle.
func (w *Watcher) Run(ctx context.Context, onChange func(version string)) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	last := w.currentVersion()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != CurrentLink {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			version := w.currentVersion()
			if version == "" || version == last {
				continue
			}
			last = version
			w.logger.Info("current bundle changed", zap.String("version", version))
			onChange(version)
		}
	}
}

func (w *Watcher) currentVersion() string {
	dir, err := Resolve(w.root)
	if err != nil {
		return ""
	}
	return filepath.Base(dir)
}
