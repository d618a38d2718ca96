// Package config implements the YAML configuration grammar SPEC_FULL.md
// §6 describes: documents of `config`, `variables`, `templates`,
// `before`, `watch`, `after` that the driver (cmd/lookout) loads,
// pre-processes, and turns into runnable Watch trees.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Document is one parsed YAML configuration file.
type Document struct {
	Path      string
	Config    map[string]interface{}
	Variables map[string]interface{}
	Templates map[string]map[string]interface{}
	Before    []map[string]interface{}
	Watch     []map[string]interface{}
	After     []map[string]interface{}
}

// rawDocument mirrors Document's YAML shape before the kwargs lists are
// normalized to map[string]interface{}.
type rawDocument struct {
	Config    map[string]interface{}   `yaml:"config"`
	Variables map[string]interface{}   `yaml:"variables"`
	Templates map[string]interface{}   `yaml:"templates"`
	Before    []interface{}            `yaml:"before"`
	Watch     []interface{}            `yaml:"watch"`
	After     []interface{}            `yaml:"after"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes `${VAR}` references against the process
// environment before YAML parsing, per spec.md §6's pre-parse rule.
// A reference to an unset variable is replaced with the empty string.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// ParseDocument parses one YAML document's bytes into a Document, after
// `${VAR}` environment pre-substitution.
func ParseDocument(path string, raw []byte) (*Document, error) {
	var rd rawDocument
	if err := yaml.Unmarshal(expandEnv(raw), &rd); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	templates := map[string]map[string]interface{}{}
	for name, def := range rd.Templates {
		m, ok := def.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("config %s: template %q is not a mapping", path, name)
		}
		templates[name] = m
	}

	before, err := toKwargsList(rd.Before)
	if err != nil {
		return nil, fmt.Errorf("config %s: before: %w", path, err)
	}
	watches, err := toKwargsList(rd.Watch)
	if err != nil {
		return nil, fmt.Errorf("config %s: watch: %w", path, err)
	}
	after, err := toKwargsList(rd.After)
	if err != nil {
		return nil, fmt.Errorf("config %s: after: %w", path, err)
	}

	return &Document{
		Path:      path,
		Config:    rd.Config,
		Variables: rd.Variables,
		Templates: templates,
		Before:    before,
		Watch:     watches,
		After:     after,
	}, nil
}

// LoadFile reads and parses one configuration file from disk.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return ParseDocument(path, raw)
}

func toKwargsList(raw []interface{}) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("entry %d is not a mapping", i)
		}
		out = append(out, m)
	}
	return out, nil
}
