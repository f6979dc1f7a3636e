package gc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/checkpoint"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/validation"
)

func newSweeper(t *testing.T) (*Sweeper, *validation.Store, *checkpoint.Store, *blobstore.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/repo/a.ts", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/orphan.ts", []byte("ORPHAN"), 0o644))

	engine, err := hashengine.NewEngine(fs, 0)
	require.NoError(t, err)
	blobs, err := blobstore.New(fs, "/blobs")
	require.NoError(t, err)
	cp := checkpoint.New(fs, "/config/projects/myproj", engine, blobs)

	store, err := validation.Open(filepath.Join(t.TempDir(), "validations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, cp, blobs), store, cp, blobs, fs
}

func TestRunEvictsAgedValidationsAndCheckpoints(t *testing.T) {
	sw, store, cp, _, _ := newSweeper(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "s1", "lint", "check", "/repo", "cmd", map[string]string{"a.ts": "hash-a"}, 1000))
	_, err := cp.Capture("session", "old-session", "/repo", []string{"a.ts"})
	require.NoError(t, err)

	report, err := sw.Run(ctx, time.Since(time.Unix(1000, 0))-time.Second, -time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, report.ValidationsEvicted)
	require.Equal(t, 1, report.CheckpointsEvicted)
}

func TestRunRemovesUnreachableBlobsKeepsReferenced(t *testing.T) {
	sw, store, cp, blobs, _ := newSweeper(t)
	ctx := context.Background()

	hashA, _, err := blobs.Put("/repo/a.ts")
	require.NoError(t, err)
	hashOrphan, _, err := blobs.Put("/repo/orphan.ts")
	require.NoError(t, err)

	require.NoError(t, store.Record(ctx, "s1", "lint", "check", "/repo", "cmd", map[string]string{"a.ts": hashA}, time.Now().Unix()))
	_, err = cp.Capture("session", "sess-1", "/repo", []string{"a.ts"})
	require.NoError(t, err)

	report, err := sw.Run(ctx, time.Hour, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, report.BlobsRemoved)

	_, getErr := blobs.Get(hashA)
	require.NoError(t, getErr)

	_, getErr = blobs.Get(hashOrphan)
	require.ErrorIs(t, getErr, blobstore.ErrNotFound)
}

func TestSummaryFormatsCounts(t *testing.T) {
	r := Report{ValidationsEvicted: 1000, CheckpointsEvicted: 2, BlobsRemoved: 3}
	require.Contains(t, r.Summary(), "1,000")
}
