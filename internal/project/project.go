package project

import (
	"path/filepath"

	"github.com/specialistvlad/buildgrid/internal/projectpath"
)

// Project is a named, hierarchically located unit of configuration.
type Project struct {
	path     projectpath.Path
	name     string
	dir      string
	rootDir  string
	explicit bool
	parent   *Project
	children []*Project
}

// Path returns the logical path.
func (p *Project) Path() projectpath.Path { return p.path }

// Name returns the project name: the last path segment, or the root name.
func (p *Project) Name() string { return p.name }

// Dir returns the physical directory relative to the root directory.
func (p *Project) Dir() string { return p.dir }

// AbsDir returns the physical directory joined onto the root directory.
func (p *Project) AbsDir() string {
	if filepath.IsAbs(p.dir) {
		return p.dir
	}
	return filepath.Join(p.rootDir, p.dir)
}

// Parent returns the enclosing project, or nil for the root.
func (p *Project) Parent() *Project { return p.parent }

// Children returns the direct subprojects in declaration order.
func (p *Project) Children() []*Project {
	out := make([]*Project, len(p.children))
	copy(out, p.children)
	return out
}

// IsRoot reports whether p is the root project.
func (p *Project) IsRoot() bool { return p.parent == nil }
