package hashengine

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/b.ts", []byte("B"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/node_modules/dep.ts", []byte("dep"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/.hidden/skip.ts", []byte("x"), 0o644))
	return fs
}

func TestFindFilesHonorsPatternsAndIgnores(t *testing.T) {
	fs := newTestFS(t)
	files, err := FindFiles(fs, "/proj", []string{"**/*.ts"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/proj/a.ts", "/proj/b.ts"}, files)
}

func TestFindFilesEmptyPatternMatchesAll(t *testing.T) {
	fs := newTestFS(t)
	files, err := FindFiles(fs, "/proj", nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/proj/a.ts", "/proj/b.ts"}, files)
}

func TestFindFilesHonorsGitignore(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, afero.WriteFile(fs, "/proj/.gitignore", []byte("b.ts\n"), 0o644))
	files, err := FindFiles(fs, "/proj", []string{"**/*.ts"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/proj/a.ts"}, files)
}

func TestHasChangesDetectsModificationAdditionDeletion(t *testing.T) {
	fs := newTestFS(t)
	e, err := NewEngine(fs, 0)
	require.NoError(t, err)

	files, err := FindFiles(fs, "/proj", []string{"**/*.ts"})
	require.NoError(t, err)
	baseline := BuildManifest(e, fs, files, "/proj")

	changed, err := HasChanges(e, fs, "/proj", []string{"**/*.ts"}, baseline)
	require.NoError(t, err)
	require.False(t, changed, "identical manifest must report no changes")

	require.NoError(t, afero.WriteFile(fs, "/proj/b.ts", []byte("B2"), 0o644))
	changed, err = HasChanges(e, fs, "/proj", []string{"**/*.ts"}, baseline)
	require.NoError(t, err)
	require.True(t, changed, "modified file must be detected")

	// Deletion.
	fs2 := newTestFS(t)
	require.NoError(t, fs2.Remove("/proj/b.ts"))
	changed, err = HasChanges(e, fs2, "/proj", []string{"**/*.ts"}, baseline)
	require.NoError(t, err)
	require.True(t, changed, "deleted file must be detected")

	// Addition.
	fs3 := newTestFS(t)
	require.NoError(t, afero.WriteFile(fs3, "/proj/c.ts", []byte("C"), 0o644))
	changed, err = HasChanges(e, fs3, "/proj", []string{"**/*.ts"}, baseline)
	require.NoError(t, err)
	require.True(t, changed, "added file must be detected")
}

func TestHashFileDeterministic(t *testing.T) {
	fs := newTestFS(t)
	e, err := NewEngine(fs, 0)
	require.NoError(t, err)

	h1, err := e.HashFile("/proj/a.ts")
	require.NoError(t, err)
	h2, err := e.HashFile("/proj/a.ts")
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	hb, err := e.HashFile("/proj/b.ts")
	require.NoError(t, err)
	require.NotEqual(t, h1, hb)
}

func TestFindDirsWithMarkers(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/repo/pkg-a/package.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/pkg-b/sub/package.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/README.md", []byte("x"), 0o644))

	dirs, err := FindDirsWithMarkers(fs, "/repo", []string{"package.json"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/repo/pkg-a", "/repo/pkg-b/sub"}, dirs)
}
