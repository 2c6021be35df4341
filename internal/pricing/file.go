package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileEntry is one model's rates in USD per million tokens, the unit providers publish.
type fileEntry struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
	Cache  float64 `yaml:"cache"`
}

// LoadFile returns Default with the models in the YAML file at path added or replaced.
// An empty path yields Default.
//
//	gpt-5:
//	  input: 1.25
//	  output: 10
//	  cache: 0.125
func LoadFile(path string) (Table, error) {
	table := Default()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var entries map[string]fileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}
	for model, e := range entries {
		if e.Input < 0 || e.Output < 0 || e.Cache < 0 {
			return nil, fmt.Errorf("pricing for %q must not be negative", model)
		}
		table[model] = perToken(e.Input, e.Output, e.Cache)
	}
	return table, nil
}
