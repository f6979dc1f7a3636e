// Command han-hook-session-end runs when a session ends. It evicts that
// session's validation rows and checkpoint immediately rather than
// waiting for the age-based garbage collector, clears the failure
// sentinel, and removes slot files recorded under this process's own pid.
// Slot files held by other processes are left to slotlock's Acquire, which
// reclaims dead-owner and stale slots.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func sessionEnd() {
	root, err := os.Getwd()
	if err != nil {
		return
	}

	ctx := context.Background()
	session := hanrun.ResolveSession()
	rt, err := hanrun.Open(ctx, session, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-session-end: bootstrap:", err)
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

	if _, err := rt.Validation.DeleteSession(ctx, session); err != nil {
		rt.Log.Error("delete_session_validations", err, map[string]any{"session": session})
	}
	if err := rt.Checkpoints.Delete("session", session); err != nil {
		rt.Log.Error("delete_session_checkpoint", err, map[string]any{"session": session})
	}
}

func main() {
	sessionEnd()
}
