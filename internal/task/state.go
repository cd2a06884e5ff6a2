package task

// State is the lifecycle state of a task, stored atomically on the Task.
type State int32

const (
	// Unrealized tasks are registered but their configuration has not run.
	Unrealized State = iota
	// Configured tasks have run all configuration functions.
	Configured
	// Executing is the transient claim taken by the worker running the task.
	Executing
	// Executed tasks ran all their actions successfully.
	Executed
	// Failed tasks had an action return an error or panic.
	Failed
	// Skipped tasks never ran; see SkipReason.
	Skipped
)

func (s State) String() string {
	switch s {
	case Unrealized:
		return "unrealized"
	case Configured:
		return "configured"
	case Executing:
		return "executing"
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == Executed || s == Failed || s == Skipped
}

// SkipReason explains why a task was skipped.
type SkipReason string

const (
	ReasonNone            SkipReason = ""
	ReasonUpstreamFailure SkipReason = "upstream failure"
	ReasonFailFast        SkipReason = "fail-fast"
	ReasonCancelled       SkipReason = "cancelled"
	ReasonExcluded        SkipReason = "excluded"
	ReasonDisabled        SkipReason = "disabled"
	ReasonDryRun          SkipReason = "dry run"
)

// SatisfiesDependents reports whether a task skipped for this reason still
// lets its dependents run.
func (r SkipReason) SatisfiesDependents() bool {
	switch r {
	case ReasonExcluded, ReasonDisabled, ReasonDryRun:
		return true
	default:
		return false
	}
}
