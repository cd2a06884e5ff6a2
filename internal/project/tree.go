package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
)

// Tree is the resolved, immutable project hierarchy.
type Tree struct {
	root   *Project
	byPath map[string]*Project
}

// Resolve builds the project tree from the settings.
func Resolve(ctx context.Context, settings *config.Settings) (*Tree, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving project tree.", "root", settings.RootName, "includes", len(settings.Includes))

	subject := settings.File
	if subject == "" {
		subject = "settings"
	}

	rootName := settings.RootName
	if rootName == "" {
		rootName = filepath.Base(settings.RootDir)
	}

	root := &Project{
		path:    projectpath.Root(),
		name:    rootName,
		dir:     ".",
		rootDir: settings.RootDir,
	}
	t := &Tree{
		root:   root,
		byPath: map[string]*Project{root.path.String(): root},
	}

	for _, inc := range settings.Includes {
		p, err := projectpath.Parse(inc.Path)
		if err != nil {
			return nil, &builderr.ConfigurationError{Subject: subject, Msg: "invalid include", Err: err}
		}
		if p.IsRoot() {
			return nil, builderr.Configf(subject, "the root project cannot be included")
		}

		// Derive every intermediate project on the way down.
		for _, ancestor := range p.Ancestors() {
			t.ensure(ancestor)
		}

		if inc.Dir == "" {
			continue
		}
		proj := t.byPath[p.String()]
		dir := filepath.Clean(inc.Dir)
		if proj.explicit && proj.dir != dir {
			return nil, builderr.Configf(subject,
				"project '%s' has conflicting directories '%s' and '%s'", p, proj.dir, dir)
		}
		proj.dir = dir
		proj.explicit = true
	}

	logger.Debug("Project tree resolved.", "projects", len(t.byPath))
	return t, nil
}

// ensure returns the project at p, creating it under its parent if needed.
// The parent must already exist.
func (t *Tree) ensure(p projectpath.Path) *Project {
	if existing, ok := t.byPath[p.String()]; ok {
		return existing
	}
	parent := t.byPath[p.Parent().String()]
	proj := &Project{
		path:    p,
		name:    p.Name(),
		dir:     p.RelDir(),
		rootDir: t.root.rootDir,
		parent:  parent,
	}
	parent.children = append(parent.children, proj)
	t.byPath[p.String()] = proj
	return proj
}

// Root returns the root project.
func (t *Tree) Root() *Project { return t.root }

// RootDir returns the absolute directory of the root project.
func (t *Tree) RootDir() string { return t.root.rootDir }

// Project looks up a project by path.
func (t *Tree) Project(p projectpath.Path) (*Project, bool) {
	proj, ok := t.byPath[p.String()]
	return proj, ok
}

// Len returns the number of projects, the root included.
func (t *Tree) Len() int { return len(t.byPath) }

// Projects returns every project in depth-first, declaration order,
// starting with the root.
func (t *Tree) Projects() []*Project {
	out := make([]*Project, 0, len(t.byPath))
	var walk func(p *Project)
	walk = func(p *Project) {
		out = append(out, p)
		for _, c := range p.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Configure hands the project at path to fn. It is the only sanctioned way
// for one project's declarations to reach another project.
func (t *Tree) Configure(path projectpath.Path, fn func(*Project) error) error {
	proj, ok := t.Project(path)
	if !ok {
		return builderr.Configf(path.String(), "project '%s' not found", path)
	}
	if err := fn(proj); err != nil {
		return fmt.Errorf("configuring project '%s': %w", path, err)
	}
	return nil
}

// Entry is a flat, comparable description of one project.
type Entry struct {
	Path     string
	Name     string
	Dir      string
	Parent   string
	Children []string
}

// Entries describes the tree in Projects order.
func (t *Tree) Entries() []Entry {
	projects := t.Projects()
	out := make([]Entry, 0, len(projects))
	for _, p := range projects {
		e := Entry{Path: p.path.String(), Name: p.name, Dir: p.dir}
		if p.parent != nil {
			e.Parent = p.parent.path.String()
		}
		for _, c := range p.children {
			e.Children = append(e.Children, c.path.String())
		}
		out = append(out, e)
	}
	return out
}
