package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
)

const (
	// SettingsFileName is looked up in the root directory.
	SettingsFileName = "settings.hcl"
	// BuildFileName is looked up in every project directory.
	BuildFileName = "build.hcl"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL declaration loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// BuildFileName implements config.Loader.
func (l *Loader) BuildFileName() string { return BuildFileName }

// LoadSettings reads settings.hcl from dir.
func (l *Loader) LoadSettings(ctx context.Context, dir string) (*config.Settings, error) {
	logger := ctxlog.FromContext(ctx)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory %s: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, builderr.Configf(absDir, "project directory is not accessible: %v", err)
	}
	if !info.IsDir() {
		return nil, builderr.Configf(absDir, "project directory is not a directory")
	}

	settings := &config.Settings{RootName: filepath.Base(absDir), RootDir: absDir}

	file := filepath.Join(absDir, SettingsFileName)
	body, found, err := parseFile(file)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debug("No settings file found, using a single-project build.", "dir", absDir)
		return settings, nil
	}
	settings.File = file

	var root settingsFile
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, &builderr.ConfigurationError{Subject: file, Msg: "failed to decode settings", Err: diags}
	}

	if root.RootProject != nil && *root.RootProject != "" {
		settings.RootName = *root.RootProject
	}

	dirs := make(map[string]string)
	for _, p := range root.Projects {
		if prev, ok := dirs[p.Path]; ok && prev != p.Dir {
			return nil, builderr.Configf(file, "project '%s' declared twice with conflicting directories %q and %q", p.Path, prev, p.Dir)
		}
		dirs[p.Path] = p.Dir
	}

	seen := make(map[string]bool)
	for _, inc := range root.Include {
		if seen[inc] {
			continue
		}
		seen[inc] = true
		settings.Includes = append(settings.Includes, config.Inclusion{Path: inc, Dir: dirs[inc]})
	}
	// A project block implies the inclusion of its path.
	for _, p := range root.Projects {
		if seen[p.Path] {
			continue
		}
		seen[p.Path] = true
		settings.Includes = append(settings.Includes, config.Inclusion{Path: p.Path, Dir: p.Dir})
	}

	logger.Debug("Settings loaded.", "file", file, "root", settings.RootName, "includes", len(settings.Includes))
	return settings, nil
}

// LoadBuildScript reads one build.hcl. Task bodies are kept undecoded until
// the task is configured.
func (l *Loader) LoadBuildScript(ctx context.Context, file string, settings *config.Settings) (*config.BuildScript, error) {
	logger := ctxlog.FromContext(ctx)

	body, found, err := parseFile(file)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debug("No build file found.", "file", file)
		return &config.BuildScript{}, nil
	}

	var root buildFile
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, &builderr.ConfigurationError{Subject: file, Msg: "failed to decode build script", Err: diags}
	}

	script, err := translateBuildFile(file, settings, &root)
	if err != nil {
		return nil, err
	}
	logger.Debug("Build script loaded.", "file", file, "tasks", len(script.Tasks), "rules", len(script.Rules), "project_blocks", len(script.Projects))
	return script, nil
}

// parseFile parses an HCL file. found is false when the file does not exist.
func parseFile(file string) (hcl.Body, bool, error) {
	if _, err := os.Stat(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error accessing %s: %w", file, err)
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, true, &builderr.ConfigurationError{Subject: file, Msg: "failed to parse HCL file", Err: diags}
	}
	return hclFile.Body, true, nil
}
