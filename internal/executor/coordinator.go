package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/dag"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/nodestore"
	"github.com/specialistvlad/buildgrid/internal/scheduler"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// outcome is what a worker reports after running a task.
type outcome struct {
	node    *dag.Node
	worker  int
	started time.Time
	took    time.Duration
	err     error
}

// coordinator owns all scheduling state for one run. Only the goroutine
// calling run touches its fields.
type coordinator struct {
	e         *Engine
	nodes     []*dag.Node
	remaining []int
	terminal  []bool
	running   []bool
	ready     *scheduler.Queue[*dag.Node]
	inFlight  int
	finished  int
	stop      task.SkipReason
}

func newCoordinator(e *Engine) *coordinator {
	nodes := e.plan.Nodes()
	c := &coordinator{
		e:         e,
		nodes:     nodes,
		remaining: make([]int, len(nodes)),
		terminal:  make([]bool, len(nodes)),
		running:   make([]bool, len(nodes)),
		ready:     scheduler.New(func(a, b *dag.Node) bool { return a.Index < b.Index }),
	}
	for _, n := range nodes {
		c.remaining[n.Index] = len(n.Deps)
		if len(n.Deps) == 0 {
			c.ready.Push(n)
		}
	}
	return c
}

// run drives the plan to completion and returns the reason scheduling was
// stopped early, if it was.
func (c *coordinator) run(ctx context.Context) task.SkipReason {
	logger := ctxlog.FromContext(ctx)

	// Actions never observe the caller's cancellation: in-flight tasks run
	// to completion.
	execCtx := context.WithoutCancel(ctx)

	workers := min(c.e.workers, len(c.nodes))
	work := make(chan *dag.Node)
	done := make(chan outcome, workers)

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.e.worker(execCtx, id, work, done)
		}(i)
	}
	defer func() {
		close(work)
		wg.Wait()
		logger.Debug("Worker pool stopped.")
	}()

	cancelled := ctx.Done()
	for c.finished < len(c.nodes) {
		if c.stop == "" && ctx.Err() != nil {
			logger.Warn("Context canceled, skipping tasks that have not started.")
			c.stop = task.ReasonCancelled
			cancelled = nil
		}
		if c.stop == "" {
			c.dispatch(ctx, work, workers)
		}
		if c.stop != "" {
			c.skipPending(ctx)
		}
		if c.finished == len(c.nodes) {
			break
		}
		if c.inFlight == 0 {
			// Nothing is running and nothing is ready; only possible if the
			// plan was not acyclic.
			logger.Error("Scheduler stalled with unfinished tasks.", "finished", c.finished, "total", len(c.nodes))
			c.stop = task.ReasonCancelled
			c.skipPending(ctx)
			break
		}

		select {
		case o := <-done:
			c.inFlight--
			c.running[o.node.Index] = false
			c.complete(ctx, o)
		case <-cancelled:
			cancelled = nil
		}
	}
	return c.stop
}

// dispatch hands ready tasks to idle workers in plan order.
func (c *coordinator) dispatch(ctx context.Context, work chan<- *dag.Node, workers int) {
	logger := ctxlog.FromContext(ctx)
	for c.inFlight < workers {
		n, ok := c.ready.Pop()
		if !ok {
			return
		}
		if c.terminal[n.Index] {
			continue
		}
		t := n.Task
		switch {
		case c.e.dryRun:
			c.skip(ctx, n, task.ReasonDryRun)
			continue
		case !t.Enabled():
			logger.Info("Skipping disabled task.", "task", n.ID())
			c.skip(ctx, n, task.ReasonDisabled)
			continue
		}
		if !t.Claim() {
			c.unclaimable(ctx, n)
			continue
		}
		logger.Debug("Dispatching task.", "task", n.ID(), "index", n.Index)
		c.inFlight++
		c.running[n.Index] = true
		work <- n
	}
}

// complete records a worker outcome and unlocks or skips dependents.
func (c *coordinator) complete(ctx context.Context, o outcome) {
	logger := ctxlog.FromContext(ctx)
	n := o.node
	c.markTerminal(n)

	if o.err != nil {
		logger.Error("Task failed.", "task", n.ID(), "error", o.err)
		c.record(ctx, n, nodestore.Result{
			Task: n.ID(), State: task.Failed, Err: o.err,
			Started: o.started, Duration: o.took, Worker: o.worker,
		})
		c.skipDependents(ctx, n)
		if c.e.failFast && c.stop == "" {
			logger.Warn("Fail-fast is set, skipping tasks that have not started.", "task", n.ID())
			c.stop = task.ReasonFailFast
		}
		return
	}

	c.record(ctx, n, nodestore.Result{
		Task: n.ID(), State: task.Executed,
		Started: o.started, Duration: o.took, Worker: o.worker,
	})
	c.release(ctx, n)
}

// unclaimable handles a task that was already claimed or finished outside
// this run, or was never configured.
func (c *coordinator) unclaimable(ctx context.Context, n *dag.Node) {
	t := n.Task
	state := t.State()
	ctxlog.FromContext(ctx).Debug("Task already claimed, not running it again.", "task", n.ID(), "state", state)
	c.markTerminal(n)

	r := nodestore.Result{Task: n.ID(), State: state, Reason: t.SkipReason(), Err: t.Err(), Duration: t.Duration(), Worker: -1}
	switch {
	case state == task.Executed, state == task.Skipped && t.SkipReason().SatisfiesDependents():
		c.record(ctx, n, r)
		c.release(ctx, n)
	case state == task.Failed, state == task.Skipped:
		c.record(ctx, n, r)
		c.skipDependents(ctx, n)
	default:
		r.State = task.Failed
		r.Err = fmt.Errorf("task '%s' could not be claimed in state %s", n.ID(), state)
		c.record(ctx, n, r)
		c.skipDependents(ctx, n)
	}
}

// skip moves a not-yet-started task to Skipped and propagates to dependents.
func (c *coordinator) skip(ctx context.Context, n *dag.Node, reason task.SkipReason) {
	if c.terminal[n.Index] {
		return
	}
	c.skipOne(ctx, n, reason)
	if reason.SatisfiesDependents() {
		c.release(ctx, n)
		return
	}
	c.skipDependents(ctx, n)
}

func (c *coordinator) skipOne(ctx context.Context, n *dag.Node, reason task.SkipReason) {
	n.Task.Skip(reason)
	c.markTerminal(n)
	c.record(ctx, n, nodestore.Result{Task: n.ID(), State: task.Skipped, Reason: reason, Worker: -1})
}

// skipDependents marks every transitive dependent of a failed or skipped
// task as skipped because of an upstream failure.
func (c *coordinator) skipDependents(ctx context.Context, n *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.Dependents {
		if c.terminal[dependent.Index] {
			continue
		}
		logger.Warn("Skipping dependent task due to upstream failure.", "task", dependent.ID(), "dependency", n.ID())
		c.skipOne(ctx, dependent, task.ReasonUpstreamFailure)
		c.skipDependents(ctx, dependent)
	}
}

// release satisfies n for each dependent and queues those that became ready.
func (c *coordinator) release(ctx context.Context, n *dag.Node) {
	for _, dependent := range n.Dependents {
		if c.terminal[dependent.Index] {
			continue
		}
		c.remaining[dependent.Index]--
		if c.remaining[dependent.Index] == 0 {
			ctxlog.FromContext(ctx).Debug("Unlocking dependent task.", "task", dependent.ID(), "dependency", n.ID())
			c.ready.Push(dependent)
		}
	}
}

// skipPending skips every task that has not started, without propagation.
func (c *coordinator) skipPending(ctx context.Context) {
	c.ready.Drain()
	for _, n := range c.nodes {
		if c.terminal[n.Index] || c.running[n.Index] {
			continue
		}
		c.skipOne(ctx, n, c.stop)
	}
}

func (c *coordinator) markTerminal(n *dag.Node) {
	c.terminal[n.Index] = true
	c.finished++
}

func (c *coordinator) record(ctx context.Context, n *dag.Node, r nodestore.Result) {
	if err := c.e.store.SetResult(ctx, r); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to record task result.", "task", n.ID(), "error", err)
	}
	ev := events.TaskEvent{
		RunID:    c.e.runID,
		Task:     r.Task,
		Index:    n.Index,
		Worker:   r.Worker,
		State:    r.State.String(),
		Reason:   string(r.Reason),
		Duration: r.Duration,
		Time:     time.Now(),
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	c.e.listener.TaskFinished(ctx, ev)
}
