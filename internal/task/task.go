package task

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/buildgrid/internal/projectpath"
)

// Mode selects when a task's configuration runs.
type Mode int

const (
	// Lazy defers configuration until the task is first needed.
	Lazy Mode = iota
	// Eager configures the task at registration time.
	Eager
)

func (m Mode) String() string {
	if m == Eager {
		return "eager"
	}
	return "lazy"
}

// ParseMode converts "lazy" or "eager" into a Mode. The empty string is Lazy.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "lazy":
		return Lazy, nil
	case "eager":
		return Eager, nil
	default:
		return Lazy, fmt.Errorf("invalid task mode %q: must be 'lazy' or 'eager'", s)
	}
}

// Action is one unit of a task's execution phase.
type Action func(ctx context.Context, t *Task) error

// ConfigureFunc mutates a task during its configuration phase.
type ConfigureFunc func(ctx context.Context, t *Task) error

// ID identifies a task by owning project and name.
type ID = projectpath.TaskRef

// Task is a named unit of work belonging to a project.
type Task struct {
	id   ID
	mode Mode
	seq  int
	dir  string

	// Description and Group are informational; set during configuration.
	Description string
	Group       string

	configureMu sync.Mutex
	mu          sync.Mutex
	enabled     bool
	dependsOn   []string
	preActions  []Action
	actions     []Action
	postActions []Action
	pending     []ConfigureFunc
	configErr   error

	state    atomic.Int32
	reason   SkipReason
	err      error
	duration time.Duration
}

// New creates an unrealized task. seq is the registry-wide registration
// sequence number used for tie-breaking; dir is the owning project's
// absolute directory.
func New(id ID, mode Mode, seq int, dir string, configure ConfigureFunc) *Task {
	t := &Task{id: id, mode: mode, seq: seq, dir: dir, enabled: true}
	if configure != nil {
		t.pending = append(t.pending, configure)
	}
	return t
}

// ID returns the task identity.
func (t *Task) ID() ID { return t.id }

// Name returns the task name within its project.
func (t *Task) Name() string { return t.id.Name }

// Project returns the owning project's path.
func (t *Task) Project() projectpath.Path { return t.id.Project }

// Path returns the canonical `:project:task` string.
func (t *Task) Path() string { return t.id.String() }

// Mode returns the registration mode.
func (t *Task) Mode() Mode { return t.mode }

// Seq returns the registration sequence number.
func (t *Task) Seq() int { return t.seq }

// Dir returns the owning project's directory.
func (t *Task) Dir() string { return t.dir }

// State returns the current state.
func (t *Task) State() State { return State(t.state.Load()) }

// Configure runs all pending configuration functions once, moving the task
// from Unrealized to Configured. Calling it on a configured task is a no-op.
// If a function fails the task stays Unrealized for good: every later call
// returns the same error.
func (t *Task) Configure(ctx context.Context) error {
	t.configureMu.Lock()
	defer t.configureMu.Unlock()

	for {
		t.mu.Lock()
		if t.configErr != nil {
			err := t.configErr
			t.mu.Unlock()
			return err
		}
		if t.State() != Unrealized {
			t.mu.Unlock()
			return nil
		}
		if len(t.pending) == 0 {
			t.state.Store(int32(Configured))
			t.mu.Unlock()
			return nil
		}
		fn := t.pending[0]
		t.pending = t.pending[1:]
		t.mu.Unlock()

		if err := fn(ctx, t); err != nil {
			t.mu.Lock()
			t.configErr = err
			t.pending = nil
			t.mu.Unlock()
			return err
		}
	}
}

// AddConfigure appends a configuration function. On an unrealized task it
// runs later, with the others; on a configured task it runs immediately.
func (t *Task) AddConfigure(ctx context.Context, fn ConfigureFunc) error {
	t.mu.Lock()
	if t.configErr != nil {
		err := t.configErr
		t.mu.Unlock()
		return err
	}
	if t.State() == Unrealized {
		t.pending = append(t.pending, fn)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	return fn(ctx, t)
}

// DependsOn records dependency references, resolved relative to the task's
// project by the graph builder. Duplicates are ignored.
func (t *Task) DependsOn(refs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ref := range refs {
		if !slices.Contains(t.dependsOn, ref) {
			t.dependsOn = append(t.dependsOn, ref)
		}
	}
}

// Dependencies returns the recorded dependency references in declaration order.
func (t *Task) Dependencies() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.dependsOn)
}

// SetEnabled toggles the task. Disabled tasks are skipped without failing
// their dependents.
func (t *Task) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Enabled reports whether the task will run its actions.
func (t *Task) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// DoFirst appends a pre-action.
func (t *Task) DoFirst(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preActions = append(t.preActions, a)
}

// Action appends a body action.
func (t *Task) Action(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
}

// DoLast appends a post-action.
func (t *Task) DoLast(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.postActions = append(t.postActions, a)
}

// ActionCount returns the total number of actions.
func (t *Task) ActionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.preActions) + len(t.actions) + len(t.postActions)
}

// Claim atomically moves a configured task to Executing. Only the caller
// that receives true may execute the task.
func (t *Task) Claim() bool {
	return t.state.CompareAndSwap(int32(Configured), int32(Executing))
}

// Execute runs pre-actions, body actions and post-actions in order and stops
// at the first error. The task must have been claimed.
func (t *Task) Execute(ctx context.Context) error {
	if t.State() != Executing {
		return fmt.Errorf("task '%s' executed without being claimed (state %s)", t.Path(), t.State())
	}

	t.mu.Lock()
	all := make([]Action, 0, len(t.preActions)+len(t.actions)+len(t.postActions))
	all = append(all, t.preActions...)
	all = append(all, t.actions...)
	all = append(all, t.postActions...)
	t.mu.Unlock()

	for _, a := range all {
		if err := a(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Finish records the outcome of an execution and moves the task to
// Executed or Failed.
func (t *Task) Finish(err error, took time.Duration) {
	t.mu.Lock()
	t.err = err
	t.duration = took
	t.mu.Unlock()

	if err != nil {
		t.state.CompareAndSwap(int32(Executing), int32(Failed))
		return
	}
	t.state.CompareAndSwap(int32(Executing), int32(Executed))
}

// Skip moves a configured task to Skipped. It returns false if the task was
// already claimed or finished.
func (t *Task) Skip(reason SkipReason) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.CompareAndSwap(int32(Configured), int32(Skipped)) {
		return false
	}
	t.reason = reason
	return true
}

// SkipReason returns why the task was skipped, if it was.
func (t *Task) SkipReason() SkipReason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns the failure recorded by Finish.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Duration returns how long the actions ran.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}
