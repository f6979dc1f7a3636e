// Command han-hook-session-start runs when a session begins: it clears any
// failure sentinel, removes slot files recorded under this process's own
// pid, and captures a fresh session-scope checkpoint. Slot files left by a
// crashed earlier process are not removed here; slotlock's Acquire
// reclaims them once their owner pid is gone or they pass the stale
// timeout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func sessionStart() {
	root, err := os.Getwd()
	if err != nil {
		return
	}

	session := hanrun.ResolveSession()
	rt, err := hanrun.Open(context.Background(), session, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-session-start: bootstrap:", err)
		return
	}
	defer rt.Close()

	if err := rt.Slots.CleanupOwned(); err != nil {
		rt.Log.Error("cleanup_owned_slots", err, nil)
	}
	if err := rt.Slots.ClearFailure(); err != nil {
		rt.Log.Error("clear_failure", err, nil)
	}

	if session == "" {
		return
	}
	if _, err := rt.Checkpoints.Capture("session", session, root, nil); err != nil {
		rt.Log.Error("capture_session_checkpoint", err, map[string]any{"session": session})
	}
}

func main() {
	sessionStart()
}
