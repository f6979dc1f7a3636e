package validation

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadLegacyManifestReadsExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache/lint_check.json",
		[]byte(`{"files":{"a.ts":"hash-a"}}`), 0o644))

	m, err := LoadLegacyManifest(fs, "/cache/lint_check.json")
	require.NoError(t, err)
	require.Equal(t, "hash-a", m.Files["a.ts"])
}

func TestLoadLegacyManifestMissingFileIsNotError(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := LoadLegacyManifest(fs, "/cache/missing.json")
	require.NoError(t, err)
	require.Nil(t, m.Files)
}
