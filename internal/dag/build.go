package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/registry"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// Request selects the tasks to plan.
//
// A qualified reference (`:core:build`, `core:build`) names exactly one task.
// An unqualified name selects the task of that name in Base and in every
// project below it.
type Request struct {
	Tasks   []string
	Exclude []string
	// Base resolves relative references. The zero value is the root project.
	Base projectpath.Path
}

// Build computes the plan for a request. Lazy tasks are configured as they
// are reached; tasks that are never reached stay unrealized. Excluded tasks
// and the dependencies only they need are left out.
func Build(ctx context.Context, reg *registry.Registry, req Request) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting plan construction.", "requested", req.Tasks, "excluded", req.Exclude)

	if len(req.Tasks) == 0 {
		return nil, builderr.Configf("request", "no tasks requested")
	}

	excluded := make(map[string]bool)
	var excludedOrder []string
	for _, ref := range req.Exclude {
		tasks, err := resolveSelector(reg, req.Base, ref)
		if err != nil {
			return nil, fmt.Errorf("resolving excluded task: %w", err)
		}
		for _, t := range tasks {
			if !excluded[t.Path()] {
				excluded[t.Path()] = true
				excludedOrder = append(excludedOrder, t.Path())
			}
		}
	}

	b := &planBuilder{
		ctx:      ctx,
		reg:      reg,
		graph:    New(),
		tasks:    make(map[string]*task.Task),
		excluded: excluded,
	}

	var requested []string
	seenRequested := make(map[string]bool)
	for _, ref := range req.Tasks {
		tasks, err := resolveSelector(reg, req.Base, ref)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if excluded[t.Path()] {
				logger.Debug("Build: Requested task is excluded.", "task", t.Path())
				continue
			}
			if !seenRequested[t.Path()] {
				seenRequested[t.Path()] = true
				requested = append(requested, t.Path())
			}
			if err := b.visit(t); err != nil {
				return nil, err
			}
		}
	}
	logger.Debug("Build: Dependency walk complete.", "task_count", b.graph.Len())

	order, err := b.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	logger.Debug("Build: Cycle detection passed.")

	plan := &Plan{
		nodes:     make([]*Node, len(order)),
		byID:      make(map[string]*Node, len(order)),
		requested: requested,
		excluded:  excludedOrder,
	}
	for i, id := range order {
		n := &Node{Index: i, Task: b.tasks[id], Requested: seenRequested[id]}
		plan.nodes[i] = n
		plan.byID[id] = n
	}
	for _, n := range plan.nodes {
		deps, _ := b.graph.Dependencies(n.ID())
		for _, d := range deps {
			dep := plan.byID[d]
			n.Deps = append(n.Deps, dep)
			dep.Dependents = append(dep.Dependents, n)
		}
	}
	for _, n := range plan.nodes {
		sort.Slice(n.Deps, func(i, j int) bool { return n.Deps[i].Index < n.Deps[j].Index })
	}

	logger.Debug("Build: Plan construction successful.", "task_count", plan.Len(), "fingerprint", plan.Fingerprint())
	return plan, nil
}

type planBuilder struct {
	ctx      context.Context
	reg      *registry.Registry
	graph    *Graph
	tasks    map[string]*task.Task
	excluded map[string]bool
}

func (b *planBuilder) visit(t *task.Task) error {
	id := t.Path()
	if _, seen := b.tasks[id]; seen {
		return nil
	}
	b.tasks[id] = t
	b.graph.AddNode(id, t.Seq())

	if err := b.reg.Realize(b.ctx, t); err != nil {
		return err
	}

	for _, ref := range t.Dependencies() {
		target, err := projectpath.ParseTaskRef(t.Project(), ref)
		if err != nil {
			return builderr.Configf(id, "invalid dependency %q: %v", ref, err)
		}
		dep, err := b.reg.Lookup(target.Project, target.Name)
		if err != nil {
			return fmt.Errorf("resolving dependencies of '%s': %w", id, err)
		}
		if b.excluded[dep.Path()] {
			ctxlog.FromContext(b.ctx).Debug("Build: Dropping edge to excluded task.", "task", id, "dependency", dep.Path())
			continue
		}
		if err := b.visit(dep); err != nil {
			return err
		}
		if err := b.graph.AddEdge(dep.Path(), id); err != nil {
			return err
		}
	}
	return nil
}

// resolveSelector maps one command-line style reference to tasks.
func resolveSelector(reg *registry.Registry, base projectpath.Path, ref string) ([]*task.Task, error) {
	if projectpath.IsQualified(ref) {
		target, err := projectpath.ParseTaskRef(base, ref)
		if err != nil {
			return nil, builderr.Configf("request", "%v", err)
		}
		t, err := reg.Lookup(target.Project, target.Name)
		if err != nil {
			return nil, err
		}
		return []*task.Task{t}, nil
	}

	if _, err := projectpath.ParseTaskRef(base, ref); err != nil {
		return nil, builderr.Configf("request", "%v", err)
	}
	var out []*task.Task
	for _, t := range reg.FindByName(ref) {
		if within(t.Project(), base) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, &builderr.UnknownTaskError{Project: base.String(), Name: ref}
	}
	return out, nil
}

func within(p, base projectpath.Path) bool {
	if base.IsRoot() || p.Equal(base) {
		return true
	}
	for _, a := range p.Ancestors() {
		if a.Equal(base) {
			return true
		}
	}
	return false
}
