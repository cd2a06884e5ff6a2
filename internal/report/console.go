package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	success lipgloss.Style
	failure lipgloss.Style
	heading lipgloss.Style
	task    lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	// The renderer picks the color profile of w, so plain writers get plain text.
	re := lipgloss.NewRenderer(w)
	return styles{
		success: re.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		failure: re.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		heading: re.NewStyle().Bold(true),
		task:    re.NewStyle().Foreground(lipgloss.Color("99")),
		muted:   re.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// RenderConsole writes the human-readable end-of-run summary.
func RenderConsole(w io.Writer, r *Report) error {
	st := newStyles(w)
	var b strings.Builder

	if r.DryRun {
		for _, row := range r.Tasks {
			fmt.Fprintf(&b, "%s %s\n", st.task.Render(row.Task), st.muted.Render("SKIPPED"))
		}
		b.WriteString("\n")
	}

	var failed, skipped []TaskRow
	for _, row := range r.Tasks {
		switch row.State {
		case "failed":
			failed = append(failed, row)
		case "skipped":
			if !r.DryRun {
				skipped = append(skipped, row)
			}
		}
	}

	if len(failed) > 0 {
		b.WriteString(st.failure.Render("FAILURE: Build failed with an exception.") + "\n\n")
		b.WriteString(st.heading.Render("* What went wrong:") + "\n")
		for _, row := range failed {
			fmt.Fprintf(&b, "Execution failed for task '%s'.\n", st.task.Render(row.Task))
			if row.Error != "" {
				fmt.Fprintf(&b, "> %s\n", row.Error)
			}
		}
		b.WriteString("\n")
	}

	if len(skipped) > 0 {
		b.WriteString(st.heading.Render("* Skipped tasks:") + "\n")
		for _, row := range skipped {
			fmt.Fprintf(&b, "  %s %s\n", st.task.Render(row.Task), st.muted.Render("("+row.Reason+")"))
		}
		b.WriteString("\n")
	}

	if len(r.Excluded) > 0 {
		fmt.Fprintf(&b, "%s %s\n\n", st.heading.Render("* Excluded:"), strings.Join(r.Excluded, ", "))
	}

	switch r.Outcome {
	case OutcomeSuccess:
		b.WriteString(st.success.Render("BUILD SUCCESSFUL") + " in " + r.Duration + "\n")
	case OutcomeCancelled:
		b.WriteString(st.failure.Render("BUILD CANCELLED") + " in " + r.Duration + "\n")
	default:
		b.WriteString(st.failure.Render("BUILD FAILED") + " in " + r.Duration + "\n")
	}
	fmt.Fprintf(&b, "%d actionable tasks: %d executed, %d failed, %d skipped\n",
		r.Counts.Planned, r.Counts.Executed, r.Counts.Failed, r.Counts.Skipped)

	_, err := io.WriteString(w, b.String())
	return err
}
