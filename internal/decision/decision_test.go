package decision

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cwstudio/han-hooks/internal/cycledetect"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/slotlock"
	"github.com/cwstudio/han-hooks/internal/validation"
)

type fakeChangeLister struct {
	changes []Change
}

func (f *fakeChangeLister) ListChanges(ctx context.Context, session string) ([]Change, error) {
	return f.changes, nil
}

func newTestEngine(t *testing.T, changes ChangeLister) (*Engine, afero.Fs, string) {
	t.Helper()
	fs := afero.NewOsFs()
	root := t.TempDir()

	eng, err := hashengine.NewEngine(fs, 64)
	require.NoError(t, err)

	store, err := validation.Open(filepath.Join(t.TempDir(), "validations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(fs, eng, store, changes), fs, root
}

func writeFile(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o644))
}

func TestScenario1CacheHitAfterNoOpRerun(t *testing.T) {
	fake := &fakeChangeLister{}
	e, fs, root := newTestEngine(t, fake)
	aPath := filepath.Join(root, "a.ts")
	bPath := filepath.Join(root, "b.ts")
	writeFile(t, fs, aPath, "A")
	writeFile(t, fs, bPath, "B")
	fake.changes = []Change{{AbsolutePath: aPath, Operation: "create"}, {AbsolutePath: bPath, Operation: "create"}}

	ctx := context.Background()
	req := Request{Session: "s1", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "true"}

	d1, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Run, d1.Kind)

	slots := slotlock.New(fs, t.TempDir(), 1, false, time.Second, time.Minute)
	cycles := cycledetect.New()
	res, err := e.Execute(ctx, req, slots, cycles, ExecuteOptions{HookInstance: "i1", OverallTimeout: 5 * time.Second})
	require.NoError(t, err)
	require.True(t, res.Success)

	d2, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, SkipCacheHit, d2.Kind)
}

func TestScenario2DeletionTriggersRerun(t *testing.T) {
	fake := &fakeChangeLister{}
	e, fs, root := newTestEngine(t, fake)
	aPath := filepath.Join(root, "a.ts")
	bPath := filepath.Join(root, "b.ts")
	writeFile(t, fs, aPath, "A")
	writeFile(t, fs, bPath, "B")
	fake.changes = []Change{{AbsolutePath: aPath, Operation: "create"}, {AbsolutePath: bPath, Operation: "create"}}

	ctx := context.Background()
	req := Request{Session: "s1", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "true"}

	slots := slotlock.New(fs, t.TempDir(), 1, false, time.Second, time.Minute)
	cycles := cycledetect.New()
	_, err := e.Execute(ctx, req, slots, cycles, ExecuteOptions{HookInstance: "i1", OverallTimeout: 5 * time.Second})
	require.NoError(t, err)

	require.NoError(t, fs.Remove(bPath))

	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Run, d.Kind)
}

func TestScenario3RestrictedModeSkipsUnrelatedEdit(t *testing.T) {
	fake := &fakeChangeLister{changes: []Change{{AbsolutePath: "/elsewhere/c.ts", Operation: "modify"}}}
	e, fs, root := newTestEngine(t, fake)
	writeFile(t, fs, filepath.Join(root, "a.ts"), "A")

	ctx := context.Background()
	req := Request{
		Session: "s1", Plugin: "lint", Hook: "check", RootDir: root,
		Patterns: []string{"**/*.ts"}, Command: "lint", CheckSessionChangesOnly: true,
	}

	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, SkipNoRelevantChange, d.Kind)
}

func TestCommandChangeInvalidatesCache(t *testing.T) {
	fake := &fakeChangeLister{}
	e, fs, root := newTestEngine(t, fake)
	aPath := filepath.Join(root, "a.ts")
	writeFile(t, fs, aPath, "A")
	fake.changes = []Change{{AbsolutePath: aPath, Operation: "create"}}

	ctx := context.Background()
	req := Request{Session: "s1", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "true"}

	slots := slotlock.New(fs, t.TempDir(), 1, false, time.Second, time.Minute)
	cycles := cycledetect.New()
	_, err := e.Execute(ctx, req, slots, cycles, ExecuteOptions{HookInstance: "i1", OverallTimeout: 5 * time.Second})
	require.NoError(t, err)

	req.Command = "true --strict"
	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Run, d.Kind)
}

func TestNoSessionAlwaysRuns(t *testing.T) {
	e, fs, root := newTestEngine(t, nil)
	writeFile(t, fs, filepath.Join(root, "a.ts"), "A")

	ctx := context.Background()
	req := Request{Session: "", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "lint"}

	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Run, d.Kind)
}

func TestNoValidationsNoSessionChangeIsSkipNoRelevantChange(t *testing.T) {
	fake := &fakeChangeLister{changes: nil}
	e, fs, root := newTestEngine(t, fake)
	writeFile(t, fs, filepath.Join(root, "a.ts"), "A")

	ctx := context.Background()
	req := Request{Session: "s1", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "true"}

	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, SkipNoRelevantChange, d.Kind)
}

func TestExecuteFailureRecordsNoValidations(t *testing.T) {
	fake := &fakeChangeLister{}
	e, fs, root := newTestEngine(t, fake)
	aPath := filepath.Join(root, "a.ts")
	writeFile(t, fs, aPath, "A")
	fake.changes = []Change{{AbsolutePath: aPath, Operation: "create"}}

	ctx := context.Background()
	req := Request{Session: "s1", Plugin: "lint", Hook: "check", RootDir: root, Patterns: []string{"**/*.ts"}, Command: "exit 1"}

	slots := slotlock.New(fs, t.TempDir(), 1, false, time.Second, time.Minute)
	cycles := cycledetect.New()
	res, err := e.Execute(ctx, req, slots, cycles, ExecuteOptions{HookInstance: "i1", OverallTimeout: 5 * time.Second})
	require.NoError(t, err)
	require.False(t, res.Success)

	d, err := e.EvaluateHook(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Run, d.Kind)
}
