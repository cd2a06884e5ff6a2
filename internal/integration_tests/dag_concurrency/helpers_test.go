package integration_tests

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/stretchr/testify/require"
)

// span is the observed execution window of one task.
type span struct {
	start, end time.Time
}

// spans collects task windows from the recorded start and finish events.
func spans(t *testing.T, rec *events.Recorder) map[string]span {
	t.Helper()
	out := make(map[string]span)
	for _, e := range rec.Events() {
		ev, ok := e.Payload.(events.TaskEvent)
		if !ok {
			continue
		}
		s := out[ev.Task]
		switch e.Name {
		case events.NameTaskStarted:
			s.start = ev.Time
		case events.NameTaskFinished:
			s.end = ev.Time
		}
		out[ev.Task] = s
	}
	for id, s := range out {
		require.False(t, s.start.IsZero(), "task %s never started", id)
		require.False(t, s.end.IsZero(), "task %s never finished", id)
	}
	return out
}

func overlaps(a, b span) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// sleepers declares one task per name that sleeps for the given seconds.
func sleepers(seconds string, names ...string) string {
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "task %q {\n  action {\n    exec = [\"sleep\", %q]\n  }\n}\n\n", n, seconds)
	}
	return b.String()
}
