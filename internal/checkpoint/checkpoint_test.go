package checkpoint

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/hashengine"
)

func newStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/repo/a.ts", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/sub/b.ts", []byte("B"), 0o644))

	engine, err := hashengine.NewEngine(fs, 0)
	require.NoError(t, err)
	blobs, err := blobstore.New(fs, "/blobs")
	require.NoError(t, err)

	return New(fs, "/config/projects/myproj", engine, blobs), fs
}

func TestCaptureThenLoadRoundTrips(t *testing.T) {
	store, _ := newStore(t)

	ok, err := store.Capture("session", "sess-1", "/repo", []string{"**/*.ts"})
	require.NoError(t, err)
	require.True(t, ok)

	cp, found, err := store.Load("session", "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, cp.Files, 2)
	require.Equal(t, "/repo", cp.Root)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store, _ := newStore(t)
	_, found, err := store.Load("session", "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestAgentCheckpointUsesAgentSubdir(t *testing.T) {
	store, fs := newStore(t)
	_, err := store.Capture("agent", "agent-1", "/repo", nil)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/config/projects/myproj/agent-agent-1/checkpoint.json")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestHasChangedSinceDetectsSubtreeChange(t *testing.T) {
	store, fs := newStore(t)
	_, err := store.Capture("session", "sess-1", "/repo", []string{"**/*.ts"})
	require.NoError(t, err)

	cp, _, err := store.Load("session", "sess-1")
	require.NoError(t, err)

	changed, err := store.HasChangedSince(cp, "/repo/sub", []string{"**/*.ts"})
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, afero.WriteFile(fs, "/repo/sub/b.ts", []byte("B2"), 0o644))
	changed, err = store.HasChangedSince(cp, "/repo/sub", []string{"**/*.ts"})
	require.NoError(t, err)
	require.True(t, changed)
}

func TestListSortsNewestFirst(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Capture("session", "sess-1", "/repo", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.Capture("session", "sess-2", "/repo", nil)
	require.NoError(t, err)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "sess-2", infos[0].ID)
}

func TestDeleteRemovesImmediately(t *testing.T) {
	store, fs := newStore(t)
	_, err := store.Capture("session", "sess-1", "/repo", nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete("session", "sess-1"))

	exists, err := afero.Exists(fs, "/config/projects/myproj/sess-1/checkpoint.json")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCleanupOlderThanRemovesAgedCheckpoints(t *testing.T) {
	store, fs := newStore(t)
	_, err := store.Capture("session", "sess-1", "/repo", nil)
	require.NoError(t, err)

	removed, err := store.CleanupOlderThan(-time.Hour) // everything is "older" than a negative horizon
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	exists, err := afero.Exists(fs, "/config/projects/myproj/sess-1/checkpoint.json")
	require.NoError(t, err)
	require.False(t, exists)
}
