package audio

import (
	"context"
	"fmt"
	"path/filepath"

	"hlsbox/logger"

	"github.com/fsnotify/fsnotify"
)

// ToolWatcher logs when the ffmpeg binary is provisioned, replaced or removed.
type ToolWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(ToolStatus)
}

// NewToolWatcher watches the directory holding path. onChange may be nil.
func NewToolWatcher(path string, onChange func(ToolStatus)) (*ToolWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &ToolWatcher{
		path:     filepath.Clean(path),
		watcher:  watcher,
		onChange: onChange,
	}, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (w *ToolWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Chmod) {
				continue
			}
			status := CheckTool(w.path)
			logger.Info("ffmpeg binary changed",
				logger.String("path", w.path),
				logger.String("op", event.Op.String()),
				logger.Bool("available", status.Available))
			if w.onChange != nil {
				w.onChange(status)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("ffmpeg watcher error", logger.ErrorField(err))
		}
	}
}

// Close stops the watcher.
func (w *ToolWatcher) Close() error {
	return w.watcher.Close()
}
