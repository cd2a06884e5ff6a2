package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	root = projectpath.Root()
	core = projectpath.MustParse(":core")
	ios  = projectpath.MustParse(":ios")
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	tree, err := project.Resolve(context.Background(), &config.Settings{
		RootName: "app",
		RootDir:  t.TempDir(),
		Includes: []config.Inclusion{{Path: "core"}, {Path: "ios"}},
	})
	require.NoError(t, err)
	return New(tree)
}

func counting(n *atomic.Int32) task.ConfigureFunc {
	return func(context.Context, *task.Task) error {
		n.Add(1)
		return nil
	}
}

func TestRegister_EagerConfiguresImmediately(t *testing.T) {
	r := newRegistry(t)
	var calls atomic.Int32

	tk, err := r.Register(context.Background(), core, "compile", task.Eager, counting(&calls))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, task.Configured, tk.State())

	_, err = r.Get(context.Background(), core, "compile")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "configuration must run exactly once")
}

func TestRegister_LazyDefersUntilGet(t *testing.T) {
	r := newRegistry(t)
	var calls atomic.Int32

	tk, err := r.Register(context.Background(), core, "compile", task.Lazy, counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, task.Unrealized, tk.State())

	got, err := r.Get(context.Background(), core, "compile")
	require.NoError(t, err)
	assert.Same(t, tk, got)
	assert.Equal(t, int32(1), calls.Load())

	_, err = r.Get(context.Background(), core, "compile")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegister_LazyConcurrentRealization(t *testing.T) {
	r := newRegistry(t)
	var calls atomic.Int32
	_, err := r.Register(context.Background(), core, "compile", task.Lazy, counting(&calls))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get(context.Background(), core, "compile")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegister_DuplicateLeavesStateUnchanged(t *testing.T) {
	r := newRegistry(t)
	var first, second atomic.Int32

	original, err := r.Register(context.Background(), core, "compile", task.Lazy, counting(&first))
	require.NoError(t, err)

	_, err = r.Register(context.Background(), core, "compile", task.Eager, counting(&second))
	require.Error(t, err)

	var dup *builderr.DuplicateTaskError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "task 'compile' is already registered in project ':core'", err.Error())
	assert.Equal(t, int32(0), second.Load())

	tasks := r.Tasks(core)
	require.Len(t, tasks, 1)
	assert.Same(t, original, tasks[0])
	assert.Equal(t, task.Unrealized, original.State())
}

func TestRegister_SameNameInDifferentProjects(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	for _, p := range []projectpath.Path{root, core, ios} {
		_, err := r.Register(ctx, p, "build", task.Lazy, nil)
		require.NoError(t, err)
	}

	found := r.FindByName("build")
	require.Len(t, found, 3)
	assert.Equal(t, ":build", found[0].Path())
	assert.Equal(t, ":core:build", found[1].Path())
	assert.Equal(t, ":ios:build", found[2].Path())
}

func TestRegister_EagerFailureIsNotStored(t *testing.T) {
	r := newRegistry(t)
	boom := errors.New("boom")

	_, err := r.Register(context.Background(), core, "compile", task.Eager, func(context.Context, *task.Task) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.ErrorIs(t, err, boom)

	_, err = r.Lookup(core, "compile")
	assert.ErrorIs(t, err, builderr.ErrUnknownTask)

	_, err = r.Register(context.Background(), core, "compile", task.Lazy, nil)
	assert.NoError(t, err, "name must be free again after a failed eager registration")
}

func TestRegister_InvalidInput(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, projectpath.MustParse(":missing"), "build", task.Lazy, nil)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)

	for _, name := range []string{"", "core:build", "has space"} {
		_, err := r.Register(ctx, core, name, task.Lazy, nil)
		assert.ErrorIs(t, err, builderr.ErrConfiguration, "name %q", name)
	}
}

func TestGet_UnknownTaskDoesNotSearchOtherProjects(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	_, err := r.Register(ctx, root, "build", task.Lazy, nil)
	require.NoError(t, err)
	_, err = r.Register(ctx, ios, "build", task.Lazy, nil)
	require.NoError(t, err)

	_, err = r.Get(ctx, core, "build")
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrUnknownTask)
	assert.Equal(t, "task ':core:build' not found in project ':core'", err.Error())

	_, err = r.Get(ctx, projectpath.MustParse(":nope"), "build")
	assert.ErrorIs(t, err, builderr.ErrUnknownTask)
}

func TestGet_ConfigurationFailure(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Register(context.Background(), core, "compile", task.Lazy, func(context.Context, *task.Task) error {
		return fmt.Errorf("bad input")
	})
	require.NoError(t, err)

	_, err = r.Get(context.Background(), core, "compile")
	require.Error(t, err)
	assert.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.Contains(t, err.Error(), ":core:compile")

	tk, lookupErr := r.Lookup(core, "compile")
	require.NoError(t, lookupErr)
	_, err = r.Get(context.Background(), core, "compile")
	assert.ErrorIs(t, err, builderr.ErrConfiguration, "a failed configuration is not retried into success")
	assert.ErrorIs(t, r.Realize(context.Background(), tk), builderr.ErrConfiguration)
	assert.Equal(t, task.Unrealized, tk.State())
}

func TestNamed_DefersForLazyTasks(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	tk, err := r.Register(ctx, core, "compile", task.Lazy, nil)
	require.NoError(t, err)

	require.NoError(t, r.Named(ctx, core, "compile", func(_ context.Context, t *task.Task) error {
		t.Description = "compiles sources"
		return nil
	}))
	assert.Equal(t, task.Unrealized, tk.State())
	assert.Empty(t, tk.Description)

	require.NoError(t, r.Realize(ctx, tk))
	assert.Equal(t, "compiles sources", tk.Description)

	err = r.Named(ctx, core, "missing", func(context.Context, *task.Task) error { return nil })
	assert.ErrorIs(t, err, builderr.ErrUnknownTask)
}

func TestWhenTaskAdded_AppliesToLaterTasksOnly(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	early, err := r.Register(ctx, core, "testUnit", task.Lazy, nil)
	require.NoError(t, err)

	require.NoError(t, r.WhenTaskAdded(core, Rule{
		Name:      "tests depend on compile",
		Predicate: func(t *task.Task) bool { return len(t.Name()) > 4 && t.Name()[:4] == "test" },
		Action:    func(t *task.Task) { t.DependsOn("compile") },
	}))

	late, err := r.Register(ctx, core, "testIntegration", task.Lazy, nil)
	require.NoError(t, err)
	other, err := r.Register(ctx, core, "lint", task.Lazy, nil)
	require.NoError(t, err)
	elsewhere, err := r.Register(ctx, ios, "testUnit", task.Lazy, nil)
	require.NoError(t, err)

	assert.Empty(t, early.Dependencies())
	assert.Equal(t, []string{"compile"}, late.Dependencies())
	assert.Empty(t, other.Dependencies())
	assert.Empty(t, elsewhere.Dependencies(), "rules are scoped to their project")
	assert.Equal(t, task.Unrealized, late.State(), "rules must not realize lazy tasks")

	assert.Error(t, r.WhenTaskAdded(core, Rule{Name: "incomplete"}))
	assert.ErrorIs(t, r.WhenTaskAdded(projectpath.MustParse(":x"), Rule{
		Predicate: func(*task.Task) bool { return true },
		Action:    func(*task.Task) {},
	}), builderr.ErrConfiguration)
}

func TestLazyTasksAreNotConfiguredUnlessRequested(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	var calls atomic.Int32

	for i := range 100 {
		_, err := r.Register(ctx, core, fmt.Sprintf("task%03d", i), task.Lazy, counting(&calls))
		require.NoError(t, err)
	}
	assert.Len(t, r.Tasks(core), 100)
	assert.Len(t, r.All(), 100)
	assert.Equal(t, int32(0), calls.Load())

	_, err := r.Get(ctx, core, "task042")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTasks_RegistrationOrder(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		_, err := r.Register(ctx, core, n, task.Lazy, nil)
		require.NoError(t, err)
	}

	var got []string
	var seqs []int
	for _, tk := range r.Tasks(core) {
		got = append(got, tk.Name())
		seqs = append(seqs, tk.Seq())
	}
	assert.Equal(t, names, got)
	assert.IsIncreasing(t, seqs)
	assert.Nil(t, r.Tasks(projectpath.MustParse(":unknown")))
}
