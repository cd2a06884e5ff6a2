// Package executor runs an execution plan on a bounded pool of workers.
//
// A single coordinator goroutine owns the scheduling state: it keeps a ready
// queue ordered by plan index, hands ready tasks to idle workers and reacts to
// their outcomes. Workers only claim and execute tasks. Each task is claimed
// with an atomic compare-and-set, so no task ever runs twice.
package executor

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/dag"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/inmemorystore"
	"github.com/specialistvlad/buildgrid/internal/nodestore"
)

// Options controls a run.
type Options struct {
	// Workers is the maximum number of tasks running at once. Zero or less
	// means one per CPU.
	Workers int
	// FailFast stops scheduling new tasks after the first failure. Tasks
	// already running finish and every pending task is skipped, the same
	// way cancellation behaves.
	FailFast bool
	// DryRun skips every task instead of executing it.
	DryRun bool
	// RunID identifies the run in events and reports; generated if empty.
	RunID    string
	Listener events.Listener
	Store    nodestore.Store
}

// Engine executes one plan.
type Engine struct {
	plan     *dag.Plan
	workers  int
	failFast bool
	dryRun   bool
	runID    string
	listener events.Listener
	store    nodestore.Store
}

// New creates an engine for the plan.
func New(plan *dag.Plan, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	listener := opts.Listener
	if listener == nil {
		listener = events.Nop{}
	}
	store := opts.Store
	if store == nil {
		store = inmemorystore.New()
	}
	return &Engine{
		plan:     plan,
		workers:  workers,
		failFast: opts.FailFast,
		dryRun:   opts.DryRun,
		runID:    runID,
		listener: listener,
		store:    store,
	}
}

// RunID returns the identifier of the run.
func (e *Engine) RunID() string { return e.runID }

// Workers returns the effective worker count.
func (e *Engine) Workers() int { return e.workers }

// Run executes the plan and blocks until every task reached a terminal
// state. Cancelling ctx skips the tasks that have not started yet; tasks
// already running are left to finish. The returned error is non-nil when a
// task failed or the run was cancelled; the summary is always returned.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	ctx, logger := ctxlog.With(ctx, "run_id", e.runID)
	started := time.Now()

	e.listener.RunStarted(ctx, events.RunInfo{
		RunID:       e.runID,
		Fingerprint: e.plan.Fingerprint(),
		Tasks:       e.plan.Order(),
		Workers:     e.workers,
		DryRun:      e.dryRun,
		Started:     started,
	})
	logger.Info("Starting execution.", "tasks", e.plan.Len(), "workers", e.workers, "fail_fast", e.failFast, "dry_run", e.dryRun)

	c := newCoordinator(e)
	stop := c.run(ctx)

	summary, err := e.summarize(ctx, started, stop)
	if err != nil {
		return nil, err
	}

	e.listener.RunFinished(ctx, events.RunOutcome{
		RunID:     e.runID,
		Success:   summary.Success(),
		Cancelled: summary.Cancelled,
		Executed:  len(summary.Executed),
		Failed:    len(summary.Failed),
		Skipped:   len(summary.Skipped),
		Duration:  summary.Duration,
	})

	if runErr := summary.Err(); runErr != nil {
		logger.Error("Execution finished with errors.", "failed", summary.Failed, "cancelled", summary.Cancelled)
		return summary, runErr
	}
	logger.Info("Execution finished.", "executed", len(summary.Executed), "skipped", len(summary.Skipped), "duration", summary.Duration)
	return summary, nil
}
