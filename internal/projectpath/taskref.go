package projectpath

import (
	"fmt"
	"strings"
)

// TaskRef is a resolved reference to a task in a project.
type TaskRef struct {
	Project Path
	Name    string
}

// String renders the reference as `:project:task`, or `:task` for the root.
func (r TaskRef) String() string {
	if r.Project.IsRoot() {
		return Separator + r.Name
	}
	return r.Project.String() + Separator + r.Name
}

// ParseTaskRef resolves ref against base.
//
//   - `:core:build` is absolute.
//   - `build` names a task in base.
//   - `core:build` names a task in the project `core` below base.
func ParseTaskRef(base Path, ref string) (TaskRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == Separator {
		return TaskRef{}, fmt.Errorf("task reference cannot be empty")
	}

	idx := strings.LastIndex(ref, Separator)
	name := ref[idx+1:]
	if name == "" {
		return TaskRef{}, fmt.Errorf("task reference %q has no task name", ref)
	}
	if !isValidSegment(name) {
		return TaskRef{}, fmt.Errorf("invalid task name %q in reference %q", name, ref)
	}

	switch {
	case idx < 0:
		return TaskRef{Project: base, Name: name}, nil
	case idx == 0:
		return TaskRef{Project: Root(), Name: name}, nil
	}

	projectPart := ref[:idx]
	project, err := Parse(projectPart)
	if err != nil {
		return TaskRef{}, fmt.Errorf("invalid task reference %q: %w", ref, err)
	}
	if strings.HasPrefix(projectPart, Separator) {
		return TaskRef{Project: project, Name: name}, nil
	}
	return TaskRef{Project: base.Append(project), Name: name}, nil
}

// IsQualified reports whether ref names a project explicitly.
func IsQualified(ref string) bool {
	return strings.Contains(ref, Separator)
}
