package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/project"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/task"
)

// Rule reacts to tasks registered in a container after the rule itself.
type Rule struct {
	// Name is used for logging only.
	Name      string
	Predicate func(*task.Task) bool
	Action    func(*task.Task)
}

// Container is one project's task registry.
type Container struct {
	project *project.Project
	tasks   map[string]*task.Task
	order   []*task.Task
	rules   []Rule
}

// Registry holds a Container for every project of a tree.
type Registry struct {
	mu         sync.Mutex
	tree       *project.Tree
	containers map[string]*Container
	seq        int
}

// New creates an empty container for every project in the tree.
func New(tree *project.Tree) *Registry {
	r := &Registry{
		tree:       tree,
		containers: make(map[string]*Container, tree.Len()),
	}
	for _, p := range tree.Projects() {
		r.containers[p.Path().String()] = &Container{
			project: p,
			tasks:   make(map[string]*task.Task),
		}
	}
	return r
}

// Tree returns the project tree the registry was built for.
func (r *Registry) Tree() *project.Tree { return r.tree }

func (r *Registry) container(p projectpath.Path) (*Container, bool) {
	c, ok := r.containers[p.String()]
	return c, ok
}

// Register stores a new task in the project's container. Eager tasks are
// configured before Register returns; if that fails the task is removed
// again and the registry is left as it was.
func (r *Registry) Register(ctx context.Context, p projectpath.Path, name string, mode task.Mode, configure task.ConfigureFunc) (*task.Task, error) {
	logger := ctxlog.FromContext(ctx)
	id := task.ID{Project: p, Name: name}

	if _, err := projectpath.ParseTaskRef(p, name); err != nil || projectpath.IsQualified(name) {
		return nil, builderr.Configf(p.String(), "invalid task name %q", name)
	}

	r.mu.Lock()
	c, ok := r.container(p)
	if !ok {
		r.mu.Unlock()
		return nil, builderr.Configf(p.String(), "cannot register task '%s': project not found", name)
	}
	if _, exists := c.tasks[name]; exists {
		r.mu.Unlock()
		return nil, &builderr.DuplicateTaskError{Project: p.String(), Name: name}
	}
	r.seq++
	t := task.New(id, mode, r.seq, c.project.AbsDir(), configure)
	c.tasks[name] = t
	c.order = append(c.order, t)
	r.mu.Unlock()

	logger.Debug("Task registered.", "task", id.String(), "mode", mode.String())

	if mode == task.Eager {
		if err := t.Configure(ctx); err != nil {
			r.remove(c, t)
			return nil, &builderr.ConfigurationError{Subject: id.String(), Msg: "configuring task", Err: err}
		}
		logger.Debug("Eager task configured.", "task", id.String())
	}

	r.mu.Lock()
	rules := make([]Rule, len(c.rules))
	copy(rules, c.rules)
	r.mu.Unlock()

	for _, rule := range rules {
		if rule.Predicate(t) {
			logger.Debug("Rule matched newly registered task.", "task", id.String(), "rule", rule.Name)
			rule.Action(t)
		}
	}
	return t, nil
}

func (r *Registry) remove(c *Container, t *task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(c.tasks, t.Name())
	for i, existing := range c.order {
		if existing == t {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Lookup returns a task without configuring it.
func (r *Registry) Lookup(p projectpath.Path, name string) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.container(p)
	if !ok {
		return nil, &builderr.UnknownTaskError{Project: p.String(), Name: name, Reason: fmt.Sprintf("project '%s' not found", p)}
	}
	t, ok := c.tasks[name]
	if !ok {
		return nil, &builderr.UnknownTaskError{Project: p.String(), Name: name}
	}
	return t, nil
}

// Get returns the named task of the project, configuring it first if it was
// registered lazily. Only the project's own container is searched.
func (r *Registry) Get(ctx context.Context, p projectpath.Path, name string) (*task.Task, error) {
	t, err := r.Lookup(p, name)
	if err != nil {
		return nil, err
	}
	if err := r.Realize(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Realize force-configures a task.
func (r *Registry) Realize(ctx context.Context, t *task.Task) error {
	if t.State() != task.Unrealized {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Realizing lazy task.", "task", t.Path())
	if err := t.Configure(ctx); err != nil {
		return &builderr.ConfigurationError{Subject: t.Path(), Msg: "configuring task", Err: err}
	}
	return nil
}

// Named adds a configuration function to an already registered task without
// realizing it.
func (r *Registry) Named(ctx context.Context, p projectpath.Path, name string, fn task.ConfigureFunc) error {
	t, err := r.Lookup(p, name)
	if err != nil {
		return err
	}
	if err := t.AddConfigure(ctx, fn); err != nil {
		return &builderr.ConfigurationError{Subject: t.Path(), Msg: "configuring task", Err: err}
	}
	return nil
}

// WhenTaskAdded installs a rule on the project's container. The rule only
// sees tasks registered after it.
func (r *Registry) WhenTaskAdded(p projectpath.Path, rule Rule) error {
	if rule.Predicate == nil || rule.Action == nil {
		return fmt.Errorf("rule %q needs both a predicate and an action", rule.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.container(p)
	if !ok {
		return builderr.Configf(p.String(), "cannot add rule: project not found")
	}
	c.rules = append(c.rules, rule)
	return nil
}

// Tasks returns the project's tasks in registration order.
func (r *Registry) Tasks(p projectpath.Path) []*task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.container(p)
	if !ok {
		return nil
	}
	out := make([]*task.Task, len(c.order))
	copy(out, c.order)
	return out
}

// FindByName returns every task with the given name, in project tree order.
func (r *Registry) FindByName(name string) []*task.Task {
	var out []*task.Task
	for _, p := range r.tree.Projects() {
		if t, err := r.Lookup(p.Path(), name); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// All returns every task in project tree order, then registration order.
func (r *Registry) All() []*task.Task {
	var out []*task.Task
	for _, p := range r.tree.Projects() {
		out = append(out, r.Tasks(p.Path())...)
	}
	return out
}
