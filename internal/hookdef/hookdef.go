// Package hookdef parses the hook definition surface a plugin manifest
// presents to the core (spec.md §6): hook name, command, and the
// optional gating/filtering fields the decision engine consumes.
package hookdef

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwstudio/han-hooks/internal/hashengine"
)

// Definition is one hook entry from a plugin manifest.
type Definition struct {
	Name        string    `yaml:"name"`
	Command     string    `yaml:"command"`
	DirsWith    []string  `yaml:"dirs_with,omitempty"`
	DirTest     string    `yaml:"dir_test,omitempty"`
	IfChanged   []string  `yaml:"if_changed,omitempty"`
	IdleTimeout *Duration `yaml:"idle_timeout,omitempty"`
	DependsOn   []string  `yaml:"depends_on,omitempty"`
	Tools       []string  `yaml:"tools,omitempty"`
	Files       []string  `yaml:"files,omitempty"`
	MCP         *bool     `yaml:"mcp,omitempty"`
	Async       bool      `yaml:"async,omitempty"`
}

// MCPEnabled reports whether this hook opts into MCP exposure, defaulting
// to true when unset (spec.md §6: "optional opt-out flag mcp: false").
func (d Definition) MCPEnabled() bool {
	return d.MCP == nil || *d.MCP
}

// MatchesTool reports whether this hook's optional tool filter includes
// toolName (prefix match, consistent with the host's "Write"/"Write(...)"
// tool-name convention). An empty filter matches every tool.
func (d Definition) MatchesTool(toolName string) bool {
	if len(d.Tools) == 0 {
		return true
	}
	for _, t := range d.Tools {
		if strings.HasPrefix(toolName, t) {
			return true
		}
	}
	return false
}

// MatchesFile reports whether this hook's optional file filter includes
// relPath (a path relative to the hook's root directory). An empty filter
// matches every file.
func (d Definition) MatchesFile(relPath string) bool {
	if len(d.Files) == 0 {
		return true
	}
	return hashengine.MatchesPatterns(relPath, d.Files)
}

// Duration wraps time.Duration with YAML string parsing ("30s", "2m")
// since plugin manifests express timeouts as durations, not nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("hookdef: idle_timeout %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Plugin is one plugin's manifest: a named bundle of hook definitions.
type Plugin struct {
	Name  string       `yaml:"name"`
	Hooks []Definition `yaml:"hooks"`
}

// Parse decodes a plugin manifest from YAML bytes.
func Parse(data []byte) (Plugin, error) {
	var p Plugin
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plugin{}, fmt.Errorf("hookdef: parse: %w", err)
	}
	for i, h := range p.Hooks {
		if h.Name == "" {
			return Plugin{}, fmt.Errorf("hookdef: hook at index %d missing name", i)
		}
		if h.Command == "" {
			return Plugin{}, fmt.Errorf("hookdef: hook %q missing command", h.Name)
		}
	}
	return p, nil
}

// ByName returns the hook definition matching name, if present.
func (p Plugin) ByName(name string) (Definition, bool) {
	for _, h := range p.Hooks {
		if h.Name == name {
			return h, true
		}
	}
	return Definition{}, false
}
