package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/buildgrid/internal/project"
)

// printProjects writes the project hierarchy.
func (a *App) printProjects(ctx context.Context) error {
	ld, err := a.load(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	root := ld.tree.Root()
	fmt.Fprintf(&b, "Root project '%s'\n", root.Name())
	writeChildren(&b, root, "")
	if len(root.Children()) == 0 {
		b.WriteString("No sub-projects\n")
	}
	_, err = fmt.Fprint(a.outW, b.String())
	return err
}

func writeChildren(b *strings.Builder, p *project.Project, indent string) {
	children := p.Children()
	for i, c := range children {
		branch, next := "+--- ", "|    "
		if i == len(children)-1 {
			branch, next = `\--- `, "     "
		}
		fmt.Fprintf(b, "%s%sProject '%s'\n", indent, branch, c.Path())
		writeChildren(b, c, indent+next)
	}
}

// printTasks lists every registered task per project. Lazy tasks are listed
// without being configured.
func (a *App) printTasks(ctx context.Context) error {
	ld, err := a.load(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, p := range ld.tree.Projects() {
		tasks := ld.registry.Tasks(p.Path())
		if len(tasks) == 0 {
			continue
		}
		if p.IsRoot() {
			fmt.Fprintf(&b, "Tasks of root project '%s'\n", p.Name())
		} else {
			fmt.Fprintf(&b, "Tasks of project '%s'\n", p.Path())
		}
		for _, t := range tasks {
			line := t.Path()
			if t.Description != "" {
				line += " - " + t.Description
			}
			fmt.Fprintf(&b, "  %s (%s)\n", line, t.Mode())
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		b.WriteString("No tasks registered.\n")
	}
	_, err = fmt.Fprint(a.outW, b.String())
	return err
}
