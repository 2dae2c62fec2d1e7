package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads configFile whenever it changes and hands the new config to
// onChange. Invalid edits are logged and skipped. It blocks until ctx is done.
//
// The parent directory is watched, not the file, because editors usually
// save by renaming a temp file over the original.
func Watch(ctx context.Context, configFile string, onChange func(Config)) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if configFile == "" {
		return errors.New("config file is required to watch")
	}
	if onChange == nil {
		return errors.New("onChange is required")
	}

	target, err := filepath.Abs(configFile)
	if err != nil {
		return errs.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create config watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errs.Wrapf(err, "watch %s", filepath.Dir(target))
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "bootstrap.config"),
		slog.String("path", target),
	)
	logging.Info(logCtx, "watching config file")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(watchDebounce)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "config watcher error", slog.Any("err", errs.Loggable(watchErr)))
		case <-pending:
			pending = nil
			cfg, err := Load(ctx, target)
			if err != nil {
				logging.Warn(logCtx, "config reload rejected", slog.Any("err", errs.Loggable(err)))
				continue
			}
			logging.Info(logCtx, "config reloaded")
			onChange(cfg)
		}
	}
}
