package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/buildgrid/internal/builder"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/registry"
)

// loaded is the outcome of the configuration phase.
type loaded struct {
	settings *config.Settings
	tree     *project.Tree
	registry *registry.Registry
}

// load reads the settings, resolves the project tree and applies every build
// script. Lazy tasks stay unconfigured.
func (a *App) load(ctx context.Context) (*loaded, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading settings...", "project_dir", a.config.ProjectDir)

	settings, err := a.loader.LoadSettings(ctx, a.config.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	tree, err := project.Resolve(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve projects: %w", err)
	}
	logger.Debug("Project tree resolved.", "projects", tree.Len())

	reg := registry.New(tree)
	if err := builder.New(a.loader, a.plugins).Apply(ctx, settings, reg); err != nil {
		return nil, fmt.Errorf("failed to apply build scripts: %w", err)
	}
	logger.Info("Build configured.", "root", settings.RootName, "projects", tree.Len(), "tasks", len(reg.All()))

	return &loaded{settings: settings, tree: tree, registry: reg}, nil
}
