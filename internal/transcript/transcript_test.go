package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	events []struct{ path, op string }
	idx    int
}

func (f *fakeSource) Next(ctx context.Context) (string, string, error) {
	if f.idx >= len(f.events) {
		return "", "", errors.New("exhausted")
	}
	e := f.events[f.idx]
	f.idx++
	return e.path, e.op, nil
}

func (f *fakeSource) Close() error { return nil }

type fakeRecorder struct {
	recorded []string
}

func (f *fakeRecorder) RecordChange(ctx context.Context, session, absolutePath, operation string, recordedAt int64) error {
	f.recorded = append(f.recorded, absolutePath+":"+operation)
	return nil
}

func TestPumpForwardsEventsToRecorder(t *testing.T) {
	src := &fakeSource{events: []struct{ path, op string }{
		{"/repo/a.ts", "modify"},
		{"/repo/b.ts", "create"},
	}}
	rec := &fakeRecorder{}

	err := Pump(context.Background(), src, rec, "sess1", func() int64 { return 1 })
	require.Error(t, err) // terminates via the fake's exhaustion error

	require.Equal(t, []string{"/repo/a.ts:modify", "/repo/b.ts:create"}, rec.recorded)
}

func TestOperationForMapsFsnotifyOps(t *testing.T) {
	require.Equal(t, "create", operationFor(fsnotify.Create))
	require.Equal(t, "modify", operationFor(fsnotify.Write))
	require.Equal(t, "delete", operationFor(fsnotify.Remove))
	require.Equal(t, "", operationFor(fsnotify.Chmod))
}
