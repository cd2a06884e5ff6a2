package testutil

import (
	"context"
	"testing"

	"github.com/specialistvlad/buildgrid/internal/app"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/hcl_adapter"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	// Output holds logs, action output and the console summary.
	Output string
	Err    error
	App    *app.App
	Dir    string
	Events *events.Recorder
}

// RunBuild writes files into a temporary root directory and runs the App
// there with cfg. ProjectDir is filled in by the harness.
func RunBuild(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()
	return RunBuildWithContext(context.Background(), t, files, cfg)
}

// RunBuildWithContext is RunBuild with a caller-provided context.
func RunBuildWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	cfg.ProjectDir = dir
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 4
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &SafeBuffer{}
	rec := &events.Recorder{}
	testApp := app.NewApp(out, appConfig, hcl_adapter.NewLoader(), rec)
	runErr := testApp.Run(ctx)
	dumpLogs(t, out)

	return &HarnessResult{
		Output: out.String(),
		Err:    runErr,
		App:    testApp,
		Dir:    dir,
		Events: rec,
	}
}
