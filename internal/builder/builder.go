package builder

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/plugin"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/registry"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// Builder loads and applies the build script of every project.
type Builder struct {
	loader  config.Loader
	plugins *plugin.Registry
}

// New creates a builder. A nil plugin registry means plugin.Default().
func New(loader config.Loader, plugins *plugin.Registry) *Builder {
	if plugins == nil {
		plugins = plugin.Default()
	}
	return &Builder{loader: loader, plugins: plugins}
}

// Apply registers the declarations of every project in the registry's tree.
func (b *Builder) Apply(ctx context.Context, settings *config.Settings, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	tree := reg.Tree()

	for _, p := range tree.Projects() {
		file := filepath.Join(p.AbsDir(), b.loader.BuildFileName())
		script, err := b.loader.LoadBuildScript(ctx, file, settings)
		if err != nil {
			return err
		}
		if script.IsEmpty() {
			continue
		}
		if err := b.plugins.ApplyAll(script); err != nil {
			return err
		}

		logger.Debug("Applying build script.", "project", p.Path(), "file", file)
		if err := applyDeclarations(ctx, reg, p.Path(), script.Rules, script.Tasks, script.Named); err != nil {
			return fmt.Errorf("applying %s: %w", file, err)
		}

		for _, block := range script.Projects {
			target, err := projectpath.Parse(block.Path)
			if err != nil {
				return fmt.Errorf("applying %s: %w", file, err)
			}
			err = tree.Configure(target, func(tp *project.Project) error {
				return applyDeclarations(ctx, reg, tp.Path(), block.Rules, block.Tasks, block.Named)
			})
			if err != nil {
				return fmt.Errorf("applying %s: %w", file, err)
			}
		}
	}

	logger.Debug("All build scripts applied.", "projects", tree.Len(), "tasks", len(reg.All()))
	return nil
}

func applyDeclarations(ctx context.Context, reg *registry.Registry, p projectpath.Path, rules []config.RuleDecl, tasks []config.TaskDecl, named []config.NamedDecl) error {
	for _, rd := range rules {
		rule, err := ruleFromDecl(p, rd)
		if err != nil {
			return err
		}
		if err := reg.WhenTaskAdded(p, rule); err != nil {
			return err
		}
	}
	for _, td := range tasks {
		if _, err := reg.Register(ctx, p, td.Name, td.Mode, td.Configure); err != nil {
			return err
		}
	}
	for _, nd := range named {
		if nd.Configure == nil {
			continue
		}
		if err := reg.Named(ctx, p, nd.Name, nd.Configure); err != nil {
			return err
		}
	}
	return nil
}

func ruleFromDecl(p projectpath.Path, rd config.RuleDecl) (registry.Rule, error) {
	if _, err := path.Match(rd.Pattern, ""); err != nil {
		return registry.Rule{}, builderr.Configf(p.String(), "invalid task rule pattern %q: %v", rd.Pattern, err)
	}
	deps := append([]string(nil), rd.DependsOn...)
	return registry.Rule{
		Name: rd.Pattern,
		Predicate: func(t *task.Task) bool {
			ok, _ := path.Match(rd.Pattern, t.Name())
			return ok
		},
		Action: func(t *task.Task) {
			t.DependsOn(deps...)
		},
	}, nil
}
