package plugin

import (
	"context"

	"github.com/specialistvlad/buildgrid/internal/action"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// Lifecycle task names contributed by the base plugin.
const (
	TaskClean    = "clean"
	TaskAssemble = "assemble"
	TaskCheck    = "check"
	TaskBuild    = "build"

	// BuildDir is the output directory removed by clean.
	BuildDir = "build"

	lifecycleGroup = "build"
)

// Base adds the lifecycle tasks every project is expected to have.
type Base struct{}

func (Base) ID() string { return "base" }

func (Base) Apply(script *config.BuildScript) {
	decls := []config.TaskDecl{
		{Name: TaskClean, Mode: task.Lazy, Configure: func(_ context.Context, t *task.Task) error {
			t.Description = "Deletes the build directory."
			t.Group = lifecycleGroup
			t.Action(action.RemoveDir(BuildDir))
			return nil
		}},
		{Name: TaskAssemble, Mode: task.Lazy, Configure: lifecycle("Assembles the outputs of this project.")},
		{Name: TaskCheck, Mode: task.Lazy, Configure: lifecycle("Runs all checks.")},
		{Name: TaskBuild, Mode: task.Lazy, Configure: lifecycle("Assembles and tests this project.", TaskAssemble, TaskCheck)},
	}
	script.Tasks = append(decls, script.Tasks...)
}

func lifecycle(description string, deps ...string) task.ConfigureFunc {
	return func(_ context.Context, t *task.Task) error {
		t.Description = description
		t.Group = lifecycleGroup
		t.DependsOn(deps...)
		return nil
	}
}
