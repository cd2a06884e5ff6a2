package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
	"github.com/specialistvlad/buildgrid/internal/events"
	"github.com/specialistvlad/buildgrid/internal/plugin"
	"github.com/specialistvlad/buildgrid/internal/report"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	loader    config.Loader
	plugins   *plugin.Registry
	listeners []events.Listener

	httpServer *http.Server

	mu          sync.Mutex
	lastOutcome report.Outcome
	builds      int
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger. Extra listeners receive the events of every build.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, listeners ...events.Listener) *App {
	logger := newLogger(cfg, outW)
	logger.Debug("Logger configured successfully.", "level", cfg.LogLevel, "format", cfg.LogFormat)

	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		loader:    loader,
		plugins:   plugin.Default(),
		listeners: listeners,
	}
}

// Logger returns the App's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

func (a *App) recordOutcome(o report.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastOutcome = o
	a.builds++
}

// LastOutcome returns the outcome of the most recent build and the number of
// builds run so far.
func (a *App) LastOutcome() (report.Outcome, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastOutcome, a.builds
}
