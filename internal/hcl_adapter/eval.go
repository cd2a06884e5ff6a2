package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/task"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions available in task bodies.
var functions = map[string]function.Function{
	"upper":  stdlib.UpperFunc,
	"lower":  stdlib.LowerFunc,
	"join":   stdlib.JoinFunc,
	"concat": stdlib.ConcatFunc,
	"format": stdlib.FormatFunc,
}

// evalContext exposes the task being configured, its project and the root
// project to expressions.
func evalContext(settings *config.Settings, t *task.Task) *hcl.EvalContext {
	projectName := t.Project().Name()
	if t.Project().IsRoot() {
		projectName = settings.RootName
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(projectName),
				"path": cty.StringVal(t.Project().String()),
				"dir":  cty.StringVal(t.Dir()),
			}),
			"task": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(t.Name()),
				"path": cty.StringVal(t.Path()),
			}),
			"root": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(settings.RootName),
				"dir":  cty.StringVal(settings.RootDir),
			}),
		},
		Functions: functions,
	}
}
