package config

import "github.com/specialistvlad/buildgrid/internal/task"

// Settings describes the project hierarchy of a build.
type Settings struct {
	// RootName is the display name of the root project.
	RootName string
	// RootDir is the absolute directory holding the settings declaration.
	RootDir string
	// File is the declaration file, empty when none was found.
	File string
	// Includes lists the included projects in declaration order.
	Includes []Inclusion
}

// Inclusion is one entry of the settings include list.
type Inclusion struct {
	// Path is the colon-delimited logical path, e.g. "ios:some-other-subproject".
	Path string
	// Dir optionally overrides the default directory, relative to RootDir.
	Dir string
}

// BuildScript holds the declarations of one project's build file.
type BuildScript struct {
	File     string
	Plugins  []string
	Rules    []RuleDecl
	Tasks    []TaskDecl
	Named    []NamedDecl
	Projects []ProjectBlock
}

// TaskDecl registers a new task.
type TaskDecl struct {
	Name      string
	Mode      task.Mode
	Configure task.ConfigureFunc
}

// NamedDecl adds configuration to an already registered task.
type NamedDecl struct {
	Name      string
	Configure task.ConfigureFunc
}

// RuleDecl adds dependencies to every task registered afterwards whose name
// matches Pattern (path.Match syntax).
type RuleDecl struct {
	Pattern   string
	DependsOn []string
}

// ProjectBlock carries declarations targeting another project.
type ProjectBlock struct {
	Path  string
	Rules []RuleDecl
	Tasks []TaskDecl
	Named []NamedDecl
}

// IsEmpty reports whether the script declares nothing.
func (s *BuildScript) IsEmpty() bool {
	return s == nil || (len(s.Plugins) == 0 && len(s.Rules) == 0 && len(s.Tasks) == 0 &&
		len(s.Named) == 0 && len(s.Projects) == 0)
}
