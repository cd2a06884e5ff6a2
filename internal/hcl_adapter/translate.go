// This file translates the HCL schema structs into the format-agnostic
// declarations of the config package.

package hcl_adapter

import (
	"context"
	"fmt"
	"path"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/buildgrid/internal/action"
	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/task"
)

func translateBuildFile(file string, settings *config.Settings, root *buildFile) (*config.BuildScript, error) {
	script := &config.BuildScript{File: file, Plugins: root.Plugins}

	var err error
	if script.Rules, err = translateRules(file, root.Rules); err != nil {
		return nil, err
	}
	if script.Tasks, err = translateTasks(file, settings, root.Tasks); err != nil {
		return nil, err
	}
	script.Named = translateNamed(file, settings, root.Named)

	for _, pb := range root.Projects {
		block := config.ProjectBlock{Path: pb.Path}
		if block.Rules, err = translateRules(file, pb.Rules); err != nil {
			return nil, err
		}
		if block.Tasks, err = translateTasks(file, settings, pb.Tasks); err != nil {
			return nil, err
		}
		block.Named = translateNamed(file, settings, pb.Named)
		script.Projects = append(script.Projects, block)
	}
	return script, nil
}

func translateRules(file string, blocks []*ruleBlock) ([]config.RuleDecl, error) {
	out := make([]config.RuleDecl, 0, len(blocks))
	for _, b := range blocks {
		if _, err := path.Match(b.Pattern, ""); err != nil {
			return nil, builderr.Configf(file, "invalid when_task_added pattern %q: %v", b.Pattern, err)
		}
		out = append(out, config.RuleDecl{Pattern: b.Pattern, DependsOn: b.DependsOn})
	}
	return out, nil
}

func translateTasks(file string, settings *config.Settings, blocks []*taskBlock) ([]config.TaskDecl, error) {
	out := make([]config.TaskDecl, 0, len(blocks))
	for _, b := range blocks {
		modeStr := ""
		if b.Mode != nil {
			modeStr = *b.Mode
		}
		mode, err := task.ParseMode(modeStr)
		if err != nil {
			return nil, builderr.Configf(fmt.Sprintf("%s: task '%s'", file, b.Name), "%v", err)
		}
		out = append(out, config.TaskDecl{
			Name:      b.Name,
			Mode:      mode,
			Configure: configureFromBody(file, settings, b.Body),
		})
	}
	return out, nil
}

func translateNamed(file string, settings *config.Settings, blocks []*namedBlock) []config.NamedDecl {
	out := make([]config.NamedDecl, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, config.NamedDecl{Name: b.Name, Configure: configureFromBody(file, settings, b.Body)})
	}
	return out
}

// configureFromBody returns a configure function that decodes body with the
// task's evaluation context and applies it to the task.
func configureFromBody(file string, settings *config.Settings, body hcl.Body) task.ConfigureFunc {
	return func(ctx context.Context, t *task.Task) error {
		ctxlog.FromContext(ctx).Debug("Decoding task body.", "task", t.Path(), "file", file)

		var tb taskBody
		if diags := gohcl.DecodeBody(body, evalContext(settings, t), &tb); diags.HasErrors() {
			return &builderr.ConfigurationError{Subject: file, Msg: fmt.Sprintf("failed to decode task '%s'", t.Path()), Err: diags}
		}

		if tb.Description != nil {
			t.Description = *tb.Description
		}
		if tb.Group != nil {
			t.Group = *tb.Group
		}
		if tb.Enabled != nil {
			t.SetEnabled(*tb.Enabled)
		}
		t.DependsOn(tb.DependsOn...)

		for _, phase := range []struct {
			name   string
			blocks []*actionBlock
			add    func(task.Action)
		}{
			{"do_first", tb.DoFirst, t.DoFirst},
			{"action", tb.Actions, t.Action},
			{"do_last", tb.DoLast, t.DoLast},
		} {
			for i, ab := range phase.blocks {
				a, err := translateAction(ab)
				if err != nil {
					return builderr.Configf(file, "task '%s' %s block %d: %v", t.Path(), phase.name, i, err)
				}
				phase.add(a)
			}
		}
		return nil
	}
}

func translateAction(ab *actionBlock) (task.Action, error) {
	var found []task.Action
	if len(ab.Exec) > 0 {
		found = append(found, action.Exec(action.ExecSpec{Argv: ab.Exec, Dir: ab.Dir, Env: ab.Env}))
	}
	if ab.Print != nil {
		found = append(found, action.Print(*ab.Print))
	}
	if ab.Fail != nil {
		found = append(found, action.Fail(*ab.Fail))
	}
	if ab.Delete != nil {
		found = append(found, action.RemoveDir(*ab.Delete))
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("exactly one of exec, print, fail or delete must be set, found %d", len(found))
	}
	return found[0], nil
}
