package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(configure ConfigureFunc) *Task {
	id := ID{Project: projectpath.MustParse(":core"), Name: "build"}
	return New(id, Lazy, 1, "/tmp/core", configure)
}

func TestTask_Identity(t *testing.T) {
	tk := newTestTask(nil)
	assert.Equal(t, ":core:build", tk.Path())
	assert.Equal(t, "build", tk.Name())
	assert.Equal(t, ":core", tk.Project().String())
	assert.Equal(t, Lazy, tk.Mode())
	assert.Equal(t, 1, tk.Seq())
	assert.Equal(t, "/tmp/core", tk.Dir())
	assert.Equal(t, Unrealized, tk.State())
	assert.True(t, tk.Enabled())
}

func TestTask_ConfigureRunsOnce(t *testing.T) {
	var calls atomic.Int32
	tk := newTestTask(func(_ context.Context, tk *Task) error {
		calls.Add(1)
		tk.DependsOn("compile")
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tk.Configure(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Configured, tk.State())
	assert.Equal(t, []string{"compile"}, tk.Dependencies())
}

func TestTask_ConfigureFailureKeepsUnrealized(t *testing.T) {
	boom := errors.New("boom")
	tk := newTestTask(func(context.Context, *Task) error { return boom })

	err := tk.Configure(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Unrealized, tk.State())
}

func TestTask_ConfigureFailureIsPermanent(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	tk := newTestTask(func(_ context.Context, tk *Task) error {
		calls++
		tk.DependsOn("half")
		return boom
	})
	require.NoError(t, tk.AddConfigure(context.Background(), func(context.Context, *Task) error {
		t.Fatal("configure after a failure must not run")
		return nil
	}))

	require.ErrorIs(t, tk.Configure(context.Background()), boom)
	require.ErrorIs(t, tk.Configure(context.Background()), boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Unrealized, tk.State())

	err := tk.AddConfigure(context.Background(), func(context.Context, *Task) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestTask_AddConfigure(t *testing.T) {
	t.Run("deferred while unrealized", func(t *testing.T) {
		var order []string
		tk := newTestTask(func(context.Context, *Task) error {
			order = append(order, "register")
			return nil
		})
		require.NoError(t, tk.AddConfigure(context.Background(), func(context.Context, *Task) error {
			order = append(order, "named")
			return nil
		}))
		assert.Empty(t, order)

		require.NoError(t, tk.Configure(context.Background()))
		assert.Equal(t, []string{"register", "named"}, order)
	})

	t.Run("immediate once configured", func(t *testing.T) {
		tk := newTestTask(nil)
		require.NoError(t, tk.Configure(context.Background()))

		ran := false
		require.NoError(t, tk.AddConfigure(context.Background(), func(context.Context, *Task) error {
			ran = true
			return nil
		}))
		assert.True(t, ran)
	})
}

func TestTask_DependsOnDeduplicates(t *testing.T) {
	tk := newTestTask(nil)
	tk.DependsOn("a", "b")
	tk.DependsOn("a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, tk.Dependencies())
}

func TestTask_ExecuteOrder(t *testing.T) {
	var order []string
	record := func(name string) Action {
		return func(context.Context, *Task) error {
			order = append(order, name)
			return nil
		}
	}

	tk := newTestTask(func(_ context.Context, tk *Task) error {
		tk.DoLast(record("last-1"))
		tk.Action(record("body"))
		tk.DoFirst(record("first-1"))
		tk.DoFirst(record("first-2"))
		tk.DoLast(record("last-2"))
		return nil
	})
	require.NoError(t, tk.Configure(context.Background()))
	assert.Equal(t, 5, tk.ActionCount())

	require.True(t, tk.Claim())
	require.NoError(t, tk.Execute(context.Background()))
	tk.Finish(nil, time.Millisecond)

	assert.Equal(t, []string{"first-1", "first-2", "body", "last-1", "last-2"}, order)
	assert.Equal(t, Executed, tk.State())
	assert.Equal(t, time.Millisecond, tk.Duration())
}

func TestTask_ExecuteStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	var postRan bool
	tk := newTestTask(func(_ context.Context, tk *Task) error {
		tk.Action(func(context.Context, *Task) error { return boom })
		tk.DoLast(func(context.Context, *Task) error {
			postRan = true
			return nil
		})
		return nil
	})
	require.NoError(t, tk.Configure(context.Background()))
	require.True(t, tk.Claim())

	err := tk.Execute(context.Background())
	tk.Finish(err, 0)

	assert.ErrorIs(t, err, boom)
	assert.False(t, postRan)
	assert.Equal(t, Failed, tk.State())
	assert.ErrorIs(t, tk.Err(), boom)
}

func TestTask_ExecuteRequiresClaim(t *testing.T) {
	tk := newTestTask(nil)
	require.NoError(t, tk.Configure(context.Background()))
	assert.ErrorContains(t, tk.Execute(context.Background()), "without being claimed")
}

func TestTask_ClaimIsExclusive(t *testing.T) {
	tk := newTestTask(nil)
	assert.False(t, tk.Claim(), "unrealized tasks cannot be claimed")
	require.NoError(t, tk.Configure(context.Background()))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tk.Claim() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, Executing, tk.State())
	assert.False(t, tk.Skip(ReasonCancelled), "claimed tasks cannot be skipped")
}

func TestTask_Skip(t *testing.T) {
	tk := newTestTask(nil)
	require.NoError(t, tk.Configure(context.Background()))

	assert.True(t, tk.Skip(ReasonUpstreamFailure))
	assert.False(t, tk.Skip(ReasonCancelled))
	assert.Equal(t, Skipped, tk.State())
	assert.Equal(t, ReasonUpstreamFailure, tk.SkipReason())
	assert.False(t, tk.Claim())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Lazy, m)

	m, err = ParseMode("eager")
	require.NoError(t, err)
	assert.Equal(t, Eager, m)
	assert.Equal(t, "eager", m.String())

	_, err = ParseMode("sometimes")
	assert.ErrorContains(t, err, "invalid task mode")
}

func TestState(t *testing.T) {
	assert.True(t, Executed.IsTerminal())
	assert.True(t, Failed.IsTerminal())
	assert.True(t, Skipped.IsTerminal())
	assert.False(t, Executing.IsTerminal())
	assert.Equal(t, "configured", Configured.String())

	assert.True(t, ReasonExcluded.SatisfiesDependents())
	assert.True(t, ReasonDisabled.SatisfiesDependents())
	assert.False(t, ReasonUpstreamFailure.SatisfiesDependents())
	assert.False(t, ReasonCancelled.SatisfiesDependents())
}
