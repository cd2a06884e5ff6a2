package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/buildgrid/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks errors caused by bad input rather than a failed build.
func usageError(err error) *ExitError {
	return &ExitError{Code: 2, Message: err.Error()}
}

type flags struct {
	projectDir      string
	maxWorkers      int
	failFast        bool
	exclude         []string
	dryRun          bool
	continuous      bool
	reportPath      string
	eventsURL       string
	eventsNamespace string
	healthcheckPort int
	logFormat       string
	logLevel        string
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var f flags
	var parsed *app.Config
	var parseErr error

	capture := func(command app.Command) func(cmd *cobra.Command, tasks []string) error {
		return func(cmd *cobra.Command, tasks []string) error {
			if command == app.CommandBuild && len(tasks) == 0 {
				return cmd.Help()
			}
			parsed, parseErr = buildConfig(cmd, command, tasks, &f)
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "buildgrid [flags] TASK...",
		Short: "buildgrid - a parallel, dependency-aware build task orchestrator.",
		Long: `buildgrid runs the requested tasks of a multi-project build, and every task
they depend on, exactly once and as parallel as the dependency graph allows.

Projects are declared in settings.hcl and tasks in each project's build.hcl.
Tasks are selected by path (":core:compile") or by name ("compile"), which
selects the task of that name in every project.`,
		Example: `  buildgrid build
  buildgrid -p ./shop :core:test --fail-fast
  buildgrid build -x :docs:javadoc --report build/report.yaml`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          capture(app.CommandBuild),
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.projectDir, "project-dir", "p", ".", "Root directory of the build.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	fl := root.Flags()
	fl.IntVar(&f.maxWorkers, "max-workers", 0, "Maximum number of tasks run in parallel. 0 uses one per CPU.")
	fl.BoolVar(&f.failFast, "fail-fast", false, "Stop scheduling new tasks after the first failure.")
	fl.StringArrayVarP(&f.exclude, "exclude-task", "x", nil, "Task to exclude from the build. Repeatable.")
	fl.BoolVarP(&f.dryRun, "dry-run", "m", false, "Print the tasks that would run without running them.")
	fl.BoolVarP(&f.continuous, "continuous", "t", false, "Rebuild whenever an input file changes.")
	fl.StringVar(&f.reportPath, "report", "", "Write a YAML build report to this path.")
	fl.StringVar(&f.eventsURL, "events-url", "", "Socket.IO server that receives build events.")
	fl.StringVar(&f.eventsNamespace, "events-namespace", "/", "Socket.IO namespace for build events.")
	fl.IntVar(&f.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")

	root.AddCommand(
		&cobra.Command{
			Use:   "projects",
			Short: "Display the project hierarchy.",
			Args:  cobra.NoArgs,
			RunE:  capture(app.CommandProjects),
		},
		&cobra.Command{
			Use:   "tasks",
			Short: "List the registered tasks of every project without configuring lazy ones.",
			Args:  cobra.NoArgs,
			RunE:  capture(app.CommandTasks),
		},
	)

	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		return nil, false, usageError(err)
	}
	if parseErr != nil {
		return nil, false, parseErr
	}
	if parsed == nil {
		// Help was printed.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", parsed)
	return parsed, false, nil
}

// buildConfig merges the flags with buildgrid.yaml; flags set on the command
// line win.
func buildConfig(cmd *cobra.Command, command app.Command, tasks []string, f *flags) (*app.Config, error) {
	props, err := app.LoadProperties(f.projectDir)
	if err != nil {
		return nil, usageError(err)
	}

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if props.MaxWorkers != nil && !changed("max-workers") {
		f.maxWorkers = *props.MaxWorkers
	}
	if props.FailFast != nil && !changed("fail-fast") {
		f.failFast = *props.FailFast
	}
	if props.LogLevel != nil && !changed("log-level") {
		f.logLevel = *props.LogLevel
	}
	if props.LogFormat != nil && !changed("log-format") {
		f.logFormat = *props.LogFormat
	}
	exclude := append(append([]string(nil), props.Exclude...), f.exclude...)

	cfg, err := app.NewConfig(app.Config{
		Command:         command,
		ProjectDir:      f.projectDir,
		Tasks:           tasks,
		ExcludeTasks:    exclude,
		MaxWorkers:      f.maxWorkers,
		FailFast:        f.failFast,
		DryRun:          f.dryRun,
		Continuous:      f.continuous,
		ReportPath:      f.reportPath,
		EventsURL:       f.eventsURL,
		EventsNamespace: f.eventsNamespace,
		HealthcheckPort: f.healthcheckPort,
		LogFormat:       strings.ToLower(f.logFormat),
		LogLevel:        strings.ToLower(f.logLevel),
	})
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

// ExitCode maps an error returned by the application to a process status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Describe renders err for the terminal.
func Describe(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Message
	}
	return fmt.Sprintf("Error: %v", err)
}
