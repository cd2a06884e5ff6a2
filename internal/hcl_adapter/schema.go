package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// settingsFile is the schema of settings.hcl.
type settingsFile struct {
	RootProject *string            `hcl:"root_project,optional"`
	Include     []string           `hcl:"include,optional"`
	Projects    []*settingsProject `hcl:"project,block"`
}

// settingsProject overrides the directory of one project.
type settingsProject struct {
	Path string `hcl:"path,label"`
	Dir  string `hcl:"dir"`
}

// buildFile is the schema of a project's build.hcl.
type buildFile struct {
	Plugins  []string        `hcl:"plugins,optional"`
	Rules    []*ruleBlock    `hcl:"when_task_added,block"`
	Tasks    []*taskBlock    `hcl:"task,block"`
	Named    []*namedBlock   `hcl:"named,block"`
	Projects []*projectBlock `hcl:"project,block"`
}

// projectBlock carries declarations for another project.
type projectBlock struct {
	Path  string        `hcl:"path,label"`
	Rules []*ruleBlock  `hcl:"when_task_added,block"`
	Tasks []*taskBlock  `hcl:"task,block"`
	Named []*namedBlock `hcl:"named,block"`
}

// taskBlock registers a task. Only the mode is read when the file is
// loaded; the rest of the body is decoded when the task is configured.
type taskBlock struct {
	Name string   `hcl:"name,label"`
	Mode *string  `hcl:"mode,optional"`
	Body hcl.Body `hcl:",remain"`
}

// namedBlock extends a task registered earlier.
type namedBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// ruleBlock adds dependencies to matching tasks registered afterwards.
type ruleBlock struct {
	Pattern   string   `hcl:"pattern"`
	DependsOn []string `hcl:"depends_on"`
}

// taskBody is the lazily decoded part of task and named blocks.
type taskBody struct {
	Description *string        `hcl:"description,optional"`
	Group       *string        `hcl:"group,optional"`
	Enabled     *bool          `hcl:"enabled,optional"`
	DependsOn   []string       `hcl:"depends_on,optional"`
	DoFirst     []*actionBlock `hcl:"do_first,block"`
	Actions     []*actionBlock `hcl:"action,block"`
	DoLast      []*actionBlock `hcl:"do_last,block"`
}

// actionBlock declares one action. Exactly one of Exec, Print, Fail and
// Delete must be set.
type actionBlock struct {
	Exec   []string          `hcl:"exec,optional"`
	Print  *string           `hcl:"print,optional"`
	Fail   *string           `hcl:"fail,optional"`
	Delete *string           `hcl:"delete,optional"`
	Dir    string            `hcl:"dir,optional"`
	Env    map[string]string `hcl:"env,optional"`
}
