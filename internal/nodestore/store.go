// Package nodestore defines where the execution engine records the outcome
// of each planned task.
//
// The store keeps mutable execution results apart from the immutable plan:
// the engine writes a Result once per task as it reaches a terminal state,
// and the summary, the report and the event publisher read them back in plan
// order. A store lives for a single run.
package nodestore

import (
	"context"
	"time"

	"github.com/specialistvlad/buildgrid/internal/task"
)

// Result is the recorded outcome of one task.
type Result struct {
	Task     string
	State    task.State
	Reason   task.SkipReason
	Err      error
	Started  time.Time
	Duration time.Duration
	// Worker is the worker that ran the task, or -1 if it never ran.
	Worker int
}

// Store records task results during a run.
//
// Implementations MUST be safe for concurrent use; workers record results
// in parallel.
type Store interface {
	// SetResult stores the result for r.Task, replacing any earlier one.
	SetResult(ctx context.Context, r Result) error

	// GetResult returns the result for a task. ok is false if none was
	// recorded.
	GetResult(ctx context.Context, id string) (r Result, ok bool, err error)

	// Results returns the recorded results for ids, in the given order,
	// skipping ids without a result.
	Results(ctx context.Context, ids []string) ([]Result, error)
}
