package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/dag"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/registry"
	"github.com/specialistvlad/buildgrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// events links the socket.io client, whose package init starts these.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/zishang520/engine.io-client-go/engine.setupSignalHandling.func1"),
		goleak.IgnoreTopFunction("github.com/zishang520/engine.io/v2/utils.SetInterval.func1"),
		goleak.IgnoreTopFunction("os/signal.NotifyContext.func1"),
	)
}

type harness struct {
	t   *testing.T
	reg *registry.Registry
}

func newHarness(t *testing.T, includes ...string) *harness {
	t.Helper()
	s := &config.Settings{RootName: "app", RootDir: t.TempDir()}
	for _, inc := range includes {
		s.Includes = append(s.Includes, config.Inclusion{Path: inc})
	}
	tree, err := project.Resolve(context.Background(), s)
	require.NoError(t, err)
	return &harness{t: t, reg: registry.New(tree)}
}

type spec struct {
	deps    []string
	action  task.Action
	enabled *bool
}

// add registers a lazy task by absolute path.
func (h *harness) add(path string, s spec) *task.Task {
	h.t.Helper()
	ref, err := projectpath.ParseTaskRef(projectpath.Root(), path)
	require.NoError(h.t, err)
	tk, err := h.reg.Register(context.Background(), ref.Project, ref.Name, task.Lazy, func(_ context.Context, t *task.Task) error {
		t.DependsOn(s.deps...)
		if s.action != nil {
			t.Action(s.action)
		}
		if s.enabled != nil {
			t.SetEnabled(*s.enabled)
		}
		return nil
	})
	require.NoError(h.t, err)
	return tk
}

func (h *harness) plan(tasks ...string) *dag.Plan {
	h.t.Helper()
	p, err := dag.Build(context.Background(), h.reg, dag.Request{Tasks: tasks})
	require.NoError(h.t, err)
	return p
}

// journal records action invocations in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) action(name string) task.Action {
	return func(context.Context, *task.Task) error {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.entries = append(j.entries, name)
		return nil
	}
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func failing(msg string) task.Action {
	return func(context.Context, *task.Task) error { return errors.New(msg) }
}

func TestRun_FailedCompileSkipsBuild(t *testing.T) {
	h := newHarness(t, "core")
	compile := h.add(":core:compile", spec{action: failing("compilation error")})
	build := h.add(":core:build", spec{deps: []string{"compile"}})

	summary, err := New(h.plan(":core:build"), Options{Workers: 2}).Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, task.Failed, compile.State())
	assert.Equal(t, task.Skipped, build.State())
	assert.Equal(t, task.ReasonUpstreamFailure, build.SkipReason())

	assert.Equal(t, []string{":core:compile"}, summary.Failed)
	assert.Equal(t, []string{":core:build"}, summary.Skipped)
	assert.Empty(t, summary.Executed)
	assert.Equal(t, 1, summary.ExitCode())
	assert.False(t, summary.Success())

	assert.ErrorIs(t, err, builderr.ErrBuildFailed)
	assert.EqualError(t, err, "execution failed for :core:compile: compilation error")

	r, ok := summary.Result(":core:build")
	require.True(t, ok)
	assert.Equal(t, task.ReasonUpstreamFailure, r.Reason)
	assert.Equal(t, -1, r.Worker)
}

func TestRun_ActionOrderWithinTask(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	_, err := h.reg.Register(context.Background(), projectpath.Root(), "assemble", task.Eager, func(_ context.Context, t *task.Task) error {
		t.DoLast(j.action("last-1"))
		t.Action(j.action("body"))
		t.DoFirst(j.action("first-1"))
		t.DoLast(j.action("last-2"))
		t.DoFirst(j.action("first-2"))
		return nil
	})
	require.NoError(t, err)

	summary, err := New(h.plan("assemble"), Options{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Equal(t, []string{"first-1", "first-2", "body", "last-1", "last-2"}, j.list())
}

func TestRun_SingleWorkerFollowsPlanOrder(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	h.add(":c", spec{action: j.action(":c")})
	h.add(":a", spec{action: j.action(":a")})
	h.add(":b", spec{deps: []string{"a"}, action: j.action(":b")})
	h.add(":all", spec{deps: []string{"b", "c"}, action: j.action(":all")})

	plan := h.plan(":all")
	_, err := New(plan, Options{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plan.Order(), j.list())
	assert.Equal(t, []string{":c", ":a", ":b", ":all"}, j.list())
}

func TestRun_IndependentTasksRunInParallel(t *testing.T) {
	h := newHarness(t)
	const n = 4
	var arrived atomic.Int32
	barrier := func(context.Context, *task.Task) error {
		arrived.Add(1)
		deadline := time.After(5 * time.Second)
		for arrived.Load() < n {
			select {
			case <-deadline:
				return errors.New("tasks did not run concurrently")
			case <-time.After(time.Millisecond):
			}
		}
		return nil
	}
	names := []string{":p1", ":p2", ":p3", ":p4"}
	for _, name := range names {
		h.add(name, spec{action: barrier})
	}

	summary, err := New(h.plan(names...), Options{Workers: n}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Executed, n)
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	h := newHarness(t)
	var current, peak atomic.Int32
	work := func(context.Context, *task.Task) error {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return nil
	}
	var names []string
	for _, name := range []string{":t1", ":t2", ":t3", ":t4", ":t5", ":t6"} {
		h.add(name, spec{action: work})
		names = append(names, name)
	}

	summary, err := New(h.plan(names...), Options{Workers: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary.Executed, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, summary.Workers)
}

func TestRun_SharedSubgraphRunsOnce(t *testing.T) {
	h := newHarness(t)
	var runs atomic.Int32
	h.add(":base", spec{action: func(context.Context, *task.Task) error {
		runs.Add(1)
		return nil
	}})
	h.add(":left", spec{deps: []string{"base"}})
	h.add(":right", spec{deps: []string{"base"}})
	h.add(":top", spec{deps: []string{"left", "right"}})

	plan := h.plan(":top", ":left", ":right")
	summary, err := New(plan, Options{Workers: 4}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), runs.Load())
	assert.Len(t, summary.Executed, 4)

	// A second engine over the same, already executed tasks runs nothing.
	summary, err = New(plan, Options{Workers: 4}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), runs.Load())
	assert.Len(t, summary.Executed, 4)
}

func TestRun_IndependentBranchesContinueAfterFailure(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	h.add(":broken", spec{action: failing("boom")})
	h.add(":after", spec{deps: []string{"broken"}, action: j.action(":after")})
	h.add(":other", spec{action: j.action(":other")})
	h.add(":otherNext", spec{deps: []string{"other"}, action: j.action(":otherNext")})

	summary, err := New(h.plan(":after", ":otherNext"), Options{Workers: 1}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{":other", ":otherNext"}, j.list())
	assert.Equal(t, []string{":broken"}, summary.Failed)
	assert.Equal(t, []string{":after"}, summary.Skipped)
	assert.False(t, summary.FailFast)
}

func TestRun_FailFastSkipsEverythingNotStarted(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	h.add(":broken", spec{action: failing("boom")})
	h.add(":later1", spec{action: j.action(":later1")})
	h.add(":later2", spec{action: j.action(":later2")})
	h.add(":after", spec{deps: []string{"broken"}})

	summary, err := New(h.plan(":broken", ":later1", ":later2", ":after"), Options{Workers: 1, FailFast: true}).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, j.list())
	assert.True(t, summary.FailFast)

	reasons := map[string]task.SkipReason{}
	for _, r := range summary.Results {
		reasons[r.Task] = r.Reason
	}
	assert.Equal(t, task.ReasonFailFast, reasons[":later1"])
	assert.Equal(t, task.ReasonFailFast, reasons[":later2"])
	assert.Equal(t, task.ReasonUpstreamFailure, reasons[":after"])
}

func TestRun_FailFastLetsInFlightTasksFinish(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	h.add(":slow", spec{action: func(context.Context, *task.Task) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		return nil
	}})
	h.add(":broken", spec{action: func(context.Context, *task.Task) error {
		<-started
		return errors.New("boom")
	}})
	h.add(":later", spec{})

	summary, err := New(h.plan(":slow", ":broken", ":later"), Options{Workers: 2, FailFast: true}).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{":slow"}, summary.Executed)
	assert.Equal(t, []string{":broken"}, summary.Failed)
	states := map[string]task.State{}
	reasons := map[string]task.SkipReason{}
	for _, r := range summary.Results {
		states[r.Task] = r.State
		reasons[r.Task] = r.Reason
	}
	assert.Equal(t, task.Executed, states[":slow"])
	assert.Equal(t, task.Skipped, states[":later"])
	assert.Equal(t, task.ReasonFailFast, reasons[":later"])
}

func TestRun_CancellationLetsInFlightTasksFinish(t *testing.T) {
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	slow := h.add(":slow", spec{action: func(ctx context.Context, _ *task.Task) error {
		close(started)
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return nil
	}})
	next := h.add(":next", spec{deps: []string{"slow"}})
	other := h.add(":other", spec{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		summary *Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := New(h.plan(":slow", ":next", ":other"), Options{Workers: 1}).Run(ctx)
		done <- result{s, err}
	}()

	<-started
	cancel()
	close(release)

	res := <-done
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.True(t, res.summary.Cancelled)
	assert.Equal(t, 1, res.summary.ExitCode())

	assert.Equal(t, task.Executed, slow.State())
	assert.False(t, sawCancel.Load(), "in-flight tasks must not see cancellation")
	assert.Equal(t, task.Skipped, next.State())
	assert.Equal(t, task.ReasonCancelled, next.SkipReason())
	assert.Equal(t, task.ReasonCancelled, other.SkipReason())
}

func TestRun_AlreadyCancelledContext(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Bool
	h.add(":a", spec{action: func(context.Context, *task.Task) error {
		ran.Store(true)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := New(h.plan(":a"), Options{}).Run(ctx)
	require.Error(t, err)
	assert.False(t, ran.Load())
	assert.Equal(t, []string{":a"}, summary.Skipped)
}

func TestRun_PanicIsTaskFailure(t *testing.T) {
	h := newHarness(t)
	h.add(":explode", spec{action: func(context.Context, *task.Task) error {
		panic("kaboom")
	}})
	h.add(":fine", spec{})

	summary, err := New(h.plan(":explode", ":fine"), Options{Workers: 2}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "panicked: kaboom")
	assert.Equal(t, []string{":explode"}, summary.Failed)
	assert.Equal(t, []string{":fine"}, summary.Executed)
}

func TestRun_DryRunSkipsEverything(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	h.add(":a", spec{action: j.action(":a")})
	h.add(":b", spec{deps: []string{"a"}, action: j.action(":b")})

	summary, err := New(h.plan(":b"), Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, j.list())
	assert.Equal(t, []string{":a", ":b"}, summary.Skipped)
	assert.True(t, summary.DryRun)
	for _, r := range summary.Results {
		assert.Equal(t, task.ReasonDryRun, r.Reason)
	}
}

func TestRun_DisabledTaskDoesNotBlockDependents(t *testing.T) {
	h := newHarness(t)
	j := &journal{}
	off := false
	h.add(":optional", spec{action: j.action(":optional"), enabled: &off})
	h.add(":main", spec{deps: []string{"optional"}, action: j.action(":main")})

	summary, err := New(h.plan(":main"), Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{":main"}, j.list())
	r, ok := summary.Result(":optional")
	require.True(t, ok)
	assert.Equal(t, task.ReasonDisabled, r.Reason)
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	h.add(":a", spec{})
	h.add(":b", spec{deps: []string{"a"}, action: failing("nope")})

	rec := &events.Recorder{}
	engine := New(h.plan(":b"), Options{Workers: 1, Listener: rec, RunID: "run-1"})
	assert.Equal(t, "run-1", engine.RunID())
	_, err := engine.Run(context.Background())
	require.Error(t, err)

	names := rec.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, events.NameRunStarted, names[0])
	assert.Equal(t, events.NameRunFinished, names[len(names)-1])

	finished := rec.Finished()
	assert.Equal(t, "executed", finished[":a"].State)
	assert.Equal(t, "failed", finished[":b"].State)
	assert.Equal(t, "nope", finished[":b"].Error)

	last := rec.Events()[len(names)-1].Payload.(events.RunOutcome)
	assert.Equal(t, "run-1", last.RunID)
	assert.False(t, last.Success)
	assert.Equal(t, 1, last.Executed)
	assert.Equal(t, 1, last.Failed)
}

func TestNew_Defaults(t *testing.T) {
	h := newHarness(t)
	h.add(":a", spec{})
	engine := New(h.plan(":a"), Options{})
	assert.NotEmpty(t, engine.RunID())
	assert.Positive(t, engine.Workers())
}
