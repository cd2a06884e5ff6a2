package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PropertiesFileName is the optional defaults file in the root directory.
const PropertiesFileName = "buildgrid.yaml"

// Properties are build defaults read from buildgrid.yaml. Nil fields are
// unset. Command-line flags take precedence.
type Properties struct {
	MaxWorkers *int     `yaml:"max_workers"`
	FailFast   *bool    `yaml:"fail_fast"`
	LogLevel   *string  `yaml:"log_level"`
	LogFormat  *string  `yaml:"log_format"`
	Exclude    []string `yaml:"exclude"`
}

// LoadProperties reads buildgrid.yaml from dir. A missing file yields empty
// properties.
func LoadProperties(dir string) (*Properties, error) {
	path := filepath.Join(dir, PropertiesFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Properties{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var props Properties
	if err := yaml.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &props, nil
}
