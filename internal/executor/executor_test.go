package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunSucceedsAndCapturesOutput(t *testing.T) {
	res := Run(context.Background(), "echo hello", t.TempDir(), time.Second, 0)
	require.True(t, res.Success)
	require.Contains(t, res.Stdout, "hello")
	require.Equal(t, 0, res.ExitCode)
}

func TestRunReportsNonZeroExit(t *testing.T) {
	res := Run(context.Background(), "exit 3", t.TempDir(), time.Second, 0)
	require.False(t, res.Success)
	require.Equal(t, "nonzero-exit", res.Reason)
	require.Equal(t, 3, res.ExitCode)
}

func TestRunTimesOutOnOverallDeadline(t *testing.T) {
	res := Run(context.Background(), "sleep 5", t.TempDir(), 50*time.Millisecond, 0)
	require.False(t, res.Success)
	require.True(t, res.TimedOut)
	require.Equal(t, "timeout", res.Reason)
}

func TestRunTimesOutOnIdleGap(t *testing.T) {
	res := Run(context.Background(), "echo start; sleep 5; echo end", t.TempDir(), 5*time.Second, 80*time.Millisecond)
	require.False(t, res.Success)
	require.True(t, res.TimedOut)
	require.Equal(t, "idle-timeout", res.Reason)
	require.Contains(t, res.Stdout, "start")
}

func TestRunIdleTimeoutResetsOnOutput(t *testing.T) {
	res := Run(context.Background(), "for i in 1 2 3 4; do echo tick; sleep 0.05; done", t.TempDir(), 5*time.Second, 300*time.Millisecond)
	require.True(t, res.Success)
	require.Contains(t, res.Stdout, "tick")
}

func TestRunReportsSpawnFailureForUnreadableDir(t *testing.T) {
	res := Run(context.Background(), "echo hi", "/nonexistent/directory/for/executor/test", time.Second, 0)
	require.False(t, res.Success)
	require.Equal(t, "spawn-failed", res.Reason)
}
