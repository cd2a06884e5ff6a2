package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/buildgrid/internal/action"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/dag"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/executor"
	"github.com/specialistvlad/buildgrid/internal/projectpath"
	"github.com/specialistvlad/buildgrid/internal/report"
	"golang.org/x/sync/errgroup"
)

// Run executes the configured command. For builds the returned error is the
// first failure, and nil only when every requested task succeeded.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	if a.config.HealthcheckPort <= 0 {
		return a.run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	var runErr error
	g.Go(func() error {
		return a.serveHealthcheck(runCtx, a.config.HealthcheckPort)
	})
	g.Go(func() error {
		defer stop()
		runErr = a.run(runCtx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}

func (a *App) run(ctx context.Context) error {
	switch a.config.Command {
	case CommandProjects:
		return a.printProjects(ctx)
	case CommandTasks:
		return a.printTasks(ctx)
	}

	listener, closeListener, err := a.listener(ctx)
	if err != nil {
		return err
	}
	defer closeListener()

	if a.config.Continuous {
		return a.runContinuous(ctx, listener)
	}
	_, err = a.build(ctx, listener)
	return err
}

// listener combines the App's listeners with the event publisher, if one is
// configured.
func (a *App) listener(ctx context.Context) (events.Listener, func(), error) {
	all := append(events.Multi(nil), a.listeners...)
	if a.config.EventsURL == "" {
		return all, func() {}, nil
	}

	pub, err := events.Dial(ctx, events.DialOptions{
		URL:       a.config.EventsURL,
		Namespace: a.config.EventsNamespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to event server: %w", err)
	}
	a.logger.Info("📡 Publishing build events.", "url", a.config.EventsURL, "namespace", a.config.EventsNamespace)
	return append(all, pub), pub.Close, nil
}

// build runs one complete configuration and execution cycle.
func (a *App) build(ctx context.Context, listener events.Listener) (*executor.Summary, error) {
	logger := ctxlog.FromContext(ctx)

	ld, err := a.load(ctx)
	if err != nil {
		a.recordOutcome(report.OutcomeFailure)
		return nil, err
	}

	plan, err := dag.Build(ctx, ld.registry, dag.Request{
		Tasks:   a.config.Tasks,
		Exclude: a.config.ExcludeTasks,
		Base:    projectpath.Root(),
	})
	if err != nil {
		a.recordOutcome(report.OutcomeFailure)
		return nil, fmt.Errorf("failed to build task graph: %w", err)
	}
	logger.Debug("Task graph built.", "tasks", plan.Len(), "fingerprint", plan.Fingerprint())

	engine := executor.New(plan, executor.Options{
		Workers:  a.config.MaxWorkers,
		FailFast: a.config.FailFast,
		DryRun:   a.config.DryRun,
		Listener: listener,
	})

	logger.Info("🚀 Starting execution...", "run_id", engine.RunID(), "tasks", plan.Len(), "workers", engine.Workers())
	summary, runErr := engine.Run(action.WithOutput(ctx, a.outW))
	if summary == nil {
		a.recordOutcome(report.OutcomeFailure)
		return nil, runErr
	}
	logger.Info("🏁 Execution finished.", "run_id", summary.RunID, "executed", len(summary.Executed), "failed", len(summary.Failed), "skipped", len(summary.Skipped))

	rep := report.FromSummary(summary)
	a.recordOutcome(rep.Outcome)
	if err := report.RenderConsole(a.outW, rep); err != nil {
		logger.Warn("Could not write the build summary.", "error", err)
	}
	if a.config.ReportPath != "" {
		if err := rep.WriteYAML(a.config.ReportPath); err != nil {
			return summary, fmt.Errorf("failed to write build report: %w", err)
		}
		logger.Info("Build report written.", "path", a.config.ReportPath)
	}
	return summary, runErr
}
