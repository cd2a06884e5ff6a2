package action

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// ExecSpec describes a process to run.
type ExecSpec struct {
	Argv []string
	// Dir is resolved against the task's project directory when relative.
	Dir string
	// Env is added on top of the inherited environment.
	Env map[string]string
}

// Exec returns an action that runs a process and streams its output.
// A non-zero exit status fails the task.
func Exec(spec ExecSpec) task.Action {
	return func(ctx context.Context, t *task.Task) error {
		if len(spec.Argv) == 0 {
			return errors.New("exec: no command given")
		}
		logger := ctxlog.FromContext(ctx)

		dir := t.Dir()
		if spec.Dir != "" {
			dir = spec.Dir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(t.Dir(), dir)
			}
		}

		cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), envList(spec.Env)...)
		out := Output(ctx)
		cmd.Stdout = out
		cmd.Stderr = out

		logger.Debug("Running process.", "argv", spec.Argv, "dir", dir)
		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("process '%s' finished with non-zero exit value %d", spec.Argv[0], exitErr.ExitCode())
			}
			return fmt.Errorf("failed to run '%s': %w", spec.Argv[0], err)
		}
		return nil
	}
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// Print returns an action that writes msg followed by a newline.
func Print(msg string) task.Action {
	return func(ctx context.Context, _ *task.Task) error {
		_, err := fmt.Fprintln(Output(ctx), msg)
		return err
	}
}

// Fail returns an action that always fails with msg.
func Fail(msg string) task.Action {
	return func(context.Context, *task.Task) error {
		return errors.New(msg)
	}
}

// RemoveDir returns an action that deletes a directory tree. A relative path
// is resolved against the task's project directory. A missing directory is
// not an error.
func RemoveDir(path string) task.Action {
	return func(ctx context.Context, t *task.Task) error {
		target := path
		if !filepath.IsAbs(target) {
			target = filepath.Join(t.Dir(), target)
		}
		if filepath.Clean(target) == filepath.Clean(t.Dir()) {
			return fmt.Errorf("refusing to delete project directory %s", target)
		}
		ctxlog.FromContext(ctx).Debug("Removing directory.", "path", target)
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("deleting %s: %w", target, err)
		}
		return nil
	}
}
