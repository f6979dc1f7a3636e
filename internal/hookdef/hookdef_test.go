package hookdef

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `
name: lint-plugin
hooks:
  - name: check
    command: lint ${HAN_FILES}
    if_changed: ["**/*.ts"]
    idle_timeout: 30s
    tools: ["Edit", "Write"]
  - name: format
    command: fmt .
    dirs_with: ["package.json"]
    depends_on: ["check"]
    mcp: false
`

func TestParseDecodesHookFields(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Equal(t, "lint-plugin", p.Name)
	require.Len(t, p.Hooks, 2)

	check, ok := p.ByName("check")
	require.True(t, ok)
	require.Equal(t, "lint ${HAN_FILES}", check.Command)
	require.Equal(t, []string{"**/*.ts"}, check.IfChanged)
	require.NotNil(t, check.IdleTimeout)
	require.Equal(t, 30*time.Second, check.IdleTimeout.Duration)
	require.True(t, check.MCPEnabled())
}

func TestParseRejectsMissingCommand(t *testing.T) {
	_, err := Parse([]byte("name: bad\nhooks:\n  - name: broken\n"))
	require.Error(t, err)
}

func TestMCPOptOut(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	format, ok := p.ByName("format")
	require.True(t, ok)
	require.False(t, format.MCPEnabled())
	require.Equal(t, []string{"check"}, format.DependsOn)
}

func TestMatchesToolAndFile(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	check, _ := p.ByName("check")
	require.True(t, check.MatchesTool("Write"))
	require.True(t, check.MatchesTool("Edit(block)"))
	require.False(t, check.MatchesTool("Bash"))

	format, _ := p.ByName("format")
	require.True(t, format.MatchesTool("Bash"), "empty tool filter matches everything")
	require.True(t, check.MatchesFile("anything.go"), "empty file filter matches everything")
}

func TestByNameMissingReturnsFalse(t *testing.T) {
	p, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	_, ok := p.ByName("nonexistent")
	require.False(t, ok)
}
