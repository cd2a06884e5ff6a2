package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specialistvlad/buildgrid/internal/executor"
	"github.com/specialistvlad/buildgrid/internal/task"
	"gopkg.in/yaml.v3"
)

// Outcome is the overall result of a run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// Report is the serializable account of one run.
type Report struct {
	RunID       string    `yaml:"run_id"`
	Fingerprint string    `yaml:"fingerprint"`
	Outcome     Outcome   `yaml:"outcome"`
	Started     time.Time `yaml:"started"`
	Duration    string    `yaml:"duration"`
	Workers     int       `yaml:"workers"`
	DryRun      bool      `yaml:"dry_run,omitempty"`
	FailFast    bool      `yaml:"fail_fast,omitempty"`
	Counts      Counts    `yaml:"counts"`
	Tasks       []TaskRow `yaml:"tasks"`
	Excluded    []string  `yaml:"excluded,omitempty"`
}

// Counts tallies task outcomes.
type Counts struct {
	Planned  int `yaml:"planned"`
	Executed int `yaml:"executed"`
	Failed   int `yaml:"failed"`
	Skipped  int `yaml:"skipped"`
	Excluded int `yaml:"excluded"`
}

// TaskRow is one planned task.
type TaskRow struct {
	Task     string `yaml:"task"`
	State    string `yaml:"state"`
	Reason   string `yaml:"reason,omitempty"`
	Error    string `yaml:"error,omitempty"`
	Duration string `yaml:"duration,omitempty"`
	Worker   *int   `yaml:"worker,omitempty"`
}

// FromSummary builds a report from an execution summary.
func FromSummary(s *executor.Summary) *Report {
	r := &Report{
		RunID:       s.RunID,
		Fingerprint: s.Fingerprint,
		Outcome:     OutcomeSuccess,
		Started:     s.Started.UTC(),
		Duration:    formatDuration(s.Duration),
		Workers:     s.Workers,
		DryRun:      s.DryRun,
		FailFast:    s.FailFast,
		Excluded:    s.Excluded,
		Counts: Counts{
			Planned:  len(s.Results),
			Executed: len(s.Executed),
			Failed:   len(s.Failed),
			Skipped:  len(s.Skipped),
			Excluded: len(s.Excluded),
		},
	}
	switch {
	case len(s.Failed) > 0:
		r.Outcome = OutcomeFailure
	case s.Cancelled:
		r.Outcome = OutcomeCancelled
	}

	r.Tasks = make([]TaskRow, 0, len(s.Results))
	for _, res := range s.Results {
		row := TaskRow{Task: res.Task, State: res.State.String()}
		if res.Reason != task.ReasonNone {
			row.Reason = string(res.Reason)
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		if res.Worker >= 0 {
			w := res.Worker
			row.Worker = &w
			row.Duration = formatDuration(res.Duration)
		}
		r.Tasks = append(r.Tasks, row)
	}
	return r
}

// Success reports whether the run succeeded.
func (r *Report) Success() bool { return r.Outcome == OutcomeSuccess }

// WriteYAML writes the report to path, creating parent directories.
func (r *Report) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return f.Close()
}

// formatDuration renders d the way the console summary prints it.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "0ms"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
