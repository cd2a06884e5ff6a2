package events

import (
	"context"
	"sync"
	"time"
)

// Event names used on the wire.
const (
	NameRunStarted   = "run_started"
	NameTaskStarted  = "task_started"
	NameTaskFinished = "task_finished"
	NameRunFinished  = "run_finished"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID       string    `json:"run_id"`
	Fingerprint string    `json:"fingerprint"`
	Tasks       []string  `json:"tasks"`
	Workers     int       `json:"workers"`
	DryRun      bool      `json:"dry_run"`
	Started     time.Time `json:"started"`
}

// TaskEvent describes one task transition.
type TaskEvent struct {
	RunID    string        `json:"run_id"`
	Task     string        `json:"task"`
	Index    int           `json:"index"`
	Worker   int           `json:"worker"`
	State    string        `json:"state"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Time     time.Time     `json:"time"`
}

// RunOutcome summarizes a finished run.
type RunOutcome struct {
	RunID     string        `json:"run_id"`
	Success   bool          `json:"success"`
	Cancelled bool          `json:"cancelled"`
	Executed  int           `json:"executed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
}

// Listener receives lifecycle notifications. Calls may arrive from several
// goroutines at once and must not block for long.
type Listener interface {
	RunStarted(ctx context.Context, info RunInfo)
	TaskStarted(ctx context.Context, ev TaskEvent)
	TaskFinished(ctx context.Context, ev TaskEvent)
	RunFinished(ctx context.Context, out RunOutcome)
}

// Nop ignores every notification.
type Nop struct{}

func (Nop) RunStarted(context.Context, RunInfo)     {}
func (Nop) TaskStarted(context.Context, TaskEvent)  {}
func (Nop) TaskFinished(context.Context, TaskEvent) {}
func (Nop) RunFinished(context.Context, RunOutcome) {}

// Multi fans notifications out to several listeners in order.
type Multi []Listener

func (m Multi) RunStarted(ctx context.Context, info RunInfo) {
	for _, l := range m {
		l.RunStarted(ctx, info)
	}
}

func (m Multi) TaskStarted(ctx context.Context, ev TaskEvent) {
	for _, l := range m {
		l.TaskStarted(ctx, ev)
	}
}

func (m Multi) TaskFinished(ctx context.Context, ev TaskEvent) {
	for _, l := range m {
		l.TaskFinished(ctx, ev)
	}
}

func (m Multi) RunFinished(ctx context.Context, out RunOutcome) {
	for _, l := range m {
		l.RunFinished(ctx, out)
	}
}

// Recorded is one notification captured by a Recorder.
type Recorded struct {
	Name    string
	Payload any
}

// Recorder keeps every notification in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) add(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Payload: payload})
}

func (r *Recorder) RunStarted(_ context.Context, info RunInfo)   { r.add(NameRunStarted, info) }
func (r *Recorder) TaskStarted(_ context.Context, ev TaskEvent)  { r.add(NameTaskStarted, ev) }
func (r *Recorder) TaskFinished(_ context.Context, ev TaskEvent) { r.add(NameTaskFinished, ev) }
func (r *Recorder) RunFinished(_ context.Context, out RunOutcome) {
	r.add(NameRunFinished, out)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Names returns the recorded event names.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

// Finished returns the task_finished events keyed by task path.
func (r *Recorder) Finished() map[string]TaskEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]TaskEvent)
	for _, e := range r.events {
		if ev, ok := e.Payload.(TaskEvent); ok && e.Name == NameTaskFinished {
			out[ev.Task] = ev
		}
	}
	return out
}
