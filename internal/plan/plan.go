// Package plan reads and writes YAML extraction plans for batch runs.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan lists the regions to extract in one batch run.
type Plan struct {
	Version string   `yaml:"version"`
	Input   string   `yaml:"input,omitempty"` // optional PDF path, overrides the CLI flag
	Figures []Figure `yaml:"figures"`
}

// Figure is one extraction target. IncludeExtras overrides the run-level
// setting when present.
type Figure struct {
	Name          string `yaml:"name"`
	Output        string `yaml:"output,omitempty"`
	IncludeExtras *bool  `yaml:"include_extras,omitempty"`
}

// Write writes a plan to a YAML file.
func Write(p *Plan, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read reads a plan from a YAML file and validates it.
func Read(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	if len(p.Figures) == 0 {
		return nil, fmt.Errorf("plan %s lists no figures", path)
	}
	for i, f := range p.Figures {
		if f.Name == "" {
			return nil, fmt.Errorf("plan %s: figure %d has no name", path, i+1)
		}
	}

	return &p, nil
}
