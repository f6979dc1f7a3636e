package sessionchange

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwstudio/han-hooks/internal/validation"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	vstore, err := validation.Open(filepath.Join(t.TempDir(), "validations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { vstore.Close() })

	tracker, err := New(vstore.DB())
	require.NoError(t, err)
	return tracker
}

func TestRecordAndListPreservesOrderAndDuplicates(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordChange(ctx, "sess1", "/repo/a.ts", "modify", 1))
	require.NoError(t, tr.RecordChange(ctx, "sess1", "/repo/b.ts", "create", 2))
	require.NoError(t, tr.RecordChange(ctx, "sess1", "/repo/a.ts", "modify", 3))

	changes, err := tr.ListChanges(ctx, "sess1")
	require.NoError(t, err)
	require.Len(t, changes, 3)
	require.Equal(t, "/repo/a.ts", changes[0].AbsolutePath)
	require.Equal(t, "/repo/b.ts", changes[1].AbsolutePath)
	require.Equal(t, "/repo/a.ts", changes[2].AbsolutePath)
}

func TestListChangesScopedToSession(t *testing.T) {
	tr := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordChange(ctx, "sess1", "/repo/a.ts", "modify", 1))
	require.NoError(t, tr.RecordChange(ctx, "sess2", "/repo/c.ts", "modify", 1))

	changes, err := tr.ListChanges(ctx, "sess1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "/repo/a.ts", changes[0].AbsolutePath)
}
