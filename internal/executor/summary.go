package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/nodestore"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// Summary is the end-of-run account of every planned task.
type Summary struct {
	RunID       string
	Fingerprint string
	Started     time.Time
	Duration    time.Duration
	Workers     int
	DryRun      bool
	// Results holds one entry per planned task, in plan order.
	Results  []nodestore.Result
	Executed []string
	Failed   []string
	Skipped  []string
	// Excluded lists tasks removed from the plan by the request.
	Excluded []string
	// Cancelled is set when the caller's context ended the run early.
	Cancelled bool
	// FailFast is set when a failure stopped scheduling.
	FailFast bool
}

// Success reports whether no task failed and the run was not cancelled.
func (s *Summary) Success() bool {
	return len(s.Failed) == 0 && !s.Cancelled
}

// ExitCode is the process status for the run.
func (s *Summary) ExitCode() int {
	if s.Success() {
		return 0
	}
	return 1
}

// Result returns the outcome of one task.
func (s *Summary) Result(id string) (nodestore.Result, bool) {
	for _, r := range s.Results {
		if r.Task == id {
			return r, true
		}
	}
	return nodestore.Result{}, false
}

// Err converts an unsuccessful run into an error.
func (s *Summary) Err() error {
	if len(s.Failed) > 0 {
		var cause error
		for _, r := range s.Results {
			if r.State == task.Failed {
				cause = r.Err
				break
			}
		}
		return &builderr.BuildFailedError{Failed: append([]string(nil), s.Failed...), Cause: cause}
	}
	if s.Cancelled {
		return fmt.Errorf("build cancelled: %w", context.Canceled)
	}
	return nil
}

func (e *Engine) summarize(ctx context.Context, started time.Time, stop task.SkipReason) (*Summary, error) {
	results, err := e.store.Results(ctx, e.plan.Order())
	if err != nil {
		return nil, fmt.Errorf("reading task results: %w", err)
	}
	s := &Summary{
		RunID:       e.runID,
		Fingerprint: e.plan.Fingerprint(),
		Started:     started,
		Duration:    time.Since(started),
		Workers:     e.workers,
		DryRun:      e.dryRun,
		Results:     results,
		Excluded:    e.plan.Excluded(),
		Cancelled:   stop == task.ReasonCancelled,
		FailFast:    stop == task.ReasonFailFast,
	}
	for _, r := range results {
		switch r.State {
		case task.Executed:
			s.Executed = append(s.Executed, r.Task)
		case task.Failed:
			s.Failed = append(s.Failed, r.Task)
		case task.Skipped:
			s.Skipped = append(s.Skipped, r.Task)
		}
	}
	return s, nil
}
