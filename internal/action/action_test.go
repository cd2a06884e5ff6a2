package action

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T) *task.Task {
	t.Helper()
	return task.New(task.ID{Project: projectpath.Root(), Name: "t"}, task.Lazy, 1, t.TempDir(), nil)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithOutput(context.Background(), &buf)
	require.NoError(t, Print("hello")(ctx, newTask(t)))
	assert.Equal(t, "hello\n", buf.String())
}

func TestOutput_DefaultsToStdout(t *testing.T) {
	assert.Equal(t, os.Stdout, Output(context.Background()))
}

func TestFail(t *testing.T) {
	err := Fail("broken on purpose")(context.Background(), newTask(t))
	assert.EqualError(t, err, "broken on purpose")
}

func TestRemoveDir(t *testing.T) {
	tk := newTask(t)
	target := filepath.Join(tk.Dir(), "build", "classes")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.out"), []byte("x"), 0o644))

	require.NoError(t, RemoveDir("build")(context.Background(), tk))
	assert.NoDirExists(t, filepath.Join(tk.Dir(), "build"))

	// Removing again is fine.
	require.NoError(t, RemoveDir("build")(context.Background(), tk))

	assert.ErrorContains(t, RemoveDir(".")(context.Background(), tk), "refusing")
}

func TestExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	tk := newTask(t)
	require.NoError(t, os.Mkdir(filepath.Join(tk.Dir(), "sub"), 0o755))

	t.Run("streams output and applies env and dir", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := WithOutput(context.Background(), &buf)
		err := Exec(ExecSpec{
			Argv: []string{"sh", "-c", "echo $GREETING; basename $(pwd)"},
			Dir:  "sub",
			Env:  map[string]string{"GREETING": "hi"},
		})(ctx, tk)
		require.NoError(t, err)
		assert.Equal(t, "hi\nsub\n", buf.String())
	})

	t.Run("non-zero exit fails", func(t *testing.T) {
		ctx := WithOutput(context.Background(), &bytes.Buffer{})
		err := Exec(ExecSpec{Argv: []string{"sh", "-c", "exit 3"}})(ctx, tk)
		assert.EqualError(t, err, "process 'sh' finished with non-zero exit value 3")
	})

	t.Run("missing binary", func(t *testing.T) {
		err := Exec(ExecSpec{Argv: []string{"definitely-not-a-real-binary-xyz"}})(context.Background(), tk)
		assert.ErrorContains(t, err, "failed to run")
	})

	t.Run("empty argv", func(t *testing.T) {
		err := Exec(ExecSpec{})(context.Background(), tk)
		assert.Error(t, err)
	})
}

func TestEnvList_Sorted(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
	assert.Empty(t, envList(nil))
}
