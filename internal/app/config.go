package app

import (
	"errors"
	"fmt"
	"slices"
)

// Command selects what the App does.
type Command string

const (
	CommandBuild    Command = "build"
	CommandProjects Command = "projects"
	CommandTasks    Command = "tasks"
)

// Valid values for the logging options.
var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command    Command
	ProjectDir string
	// Tasks are the requested task selectors, e.g. "build" or ":core:test".
	Tasks        []string
	ExcludeTasks []string

	MaxWorkers int
	FailFast   bool
	DryRun     bool
	Continuous bool
	ReportPath string

	EventsURL       string
	EventsNamespace string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		return nil, errors.New("ProjectDir is a required configuration field and cannot be empty")
	}
	if cfg.Command == "" {
		cfg.Command = CommandBuild
	}
	switch cfg.Command {
	case CommandBuild:
		if len(cfg.Tasks) == 0 {
			return nil, errors.New("no tasks requested: name at least one task to run")
		}
	case CommandProjects, CommandTasks:
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if cfg.MaxWorkers < 0 {
		return nil, fmt.Errorf("invalid max-workers %d: must not be negative", cfg.MaxWorkers)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !slices.Contains(LogLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(LogFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log-format: must be 'text' or 'json'")
	}
	if cfg.EventsNamespace == "" {
		cfg.EventsNamespace = "/"
	}
	return &cfg, nil
}
