package config

import "context"

// Loader is the interface for a format-specific declaration source.
type Loader interface {
	// LoadSettings reads the settings declaration found in dir. A missing
	// declaration yields a single-project build rooted at dir.
	LoadSettings(ctx context.Context, dir string) (*Settings, error)

	// LoadBuildScript reads one project's build declaration. A missing file
	// yields an empty script.
	LoadBuildScript(ctx context.Context, file string, settings *Settings) (*BuildScript, error)

	// BuildFileName is the file name looked up in every project directory.
	BuildFileName() string
}
