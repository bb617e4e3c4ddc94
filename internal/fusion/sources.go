// Package fusion gathers query context from multiple sources in
// parallel and merges it into a single bounded string.
package fusion

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source describes one external content origin and the query words
// that select it.
type Source struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Type     string   `yaml:"type"`
}

// DefaultSources is the built-in source table. The last entry is the
// fallback when no trigger matches.
func DefaultSources() []Source {
	return []Source{
		{Name: "arXiv", Triggers: []string{"latest", "paper", "research"}, Type: "research"},
		{Name: "MDN", Triggers: []string{"doc", "syntax", "explain"}, Type: "docs"},
		{Name: "GitHub", Triggers: []string{"code", "example", "build"}, Type: "code"},
	}
}

// LoadSources reads a source table from a YAML file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	var sources []Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}
	return sources, nil
}
