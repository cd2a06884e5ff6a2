package app

import (
	"context"
	"errors"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/watch"
)

// watchDebounce is the quiet period before a rebuild; tests lower it.
var watchDebounce = watch.DefaultDebounce

// runContinuous builds once, then rebuilds whenever a watched file changes,
// until ctx is cancelled. Build failures are reported and waited out.
func (a *App) runContinuous(ctx context.Context, listener events.Listener) error {
	logger := ctxlog.FromContext(ctx)

	a.continuousBuild(ctx, listener)

	dirs, err := a.watchedDirs(ctx)
	if err != nil {
		return err
	}
	w, err := watch.New(watch.Options{Dirs: dirs, Debounce: watchDebounce})
	if err != nil {
		return err
	}

	logger.Info("👀 Waiting for changes to input files...", "dirs", len(dirs))
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		logger.Info("🔁 Change detected, rebuilding.", "files", len(changed), "first", changed[0])
		a.continuousBuild(ctx, listener)
		logger.Info("👀 Waiting for changes to input files...")
	})
}

func (a *App) continuousBuild(ctx context.Context, listener events.Listener) {
	_, err := a.build(ctx, listener)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case errors.Is(err, builderr.ErrBuildFailed):
		// Already rendered in the console summary.
	default:
		ctxlog.FromContext(ctx).Error("Build failed.", "error", err)
	}
}

// watchedDirs returns the directory of every project. The watcher walks
// each recursively, so nested project directories are covered twice at most.
func (a *App) watchedDirs(ctx context.Context) ([]string, error) {
	settings, err := a.loader.LoadSettings(ctx, a.config.ProjectDir)
	if err != nil {
		return nil, err
	}
	tree, err := project.Resolve(ctx, settings)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, p := range tree.Projects() {
		dirs = append(dirs, p.AbsDir())
	}
	return dirs, nil
}
