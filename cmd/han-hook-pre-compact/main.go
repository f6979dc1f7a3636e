// Command han-hook-pre-compact runs immediately before the host compacts
// a session's transcript. It recaptures the session checkpoint so the
// baseline used for post-compaction change detection reflects the
// project's state right up to the compaction boundary.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func preCompact() {
	root, err := os.Getwd()
	if err != nil {
		return
	}

	session := hanrun.ResolveSession()
	if session == "" {
		return
	}

	rt, err := hanrun.Open(context.Background(), session, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-pre-compact: bootstrap:", err)
		return
	}
	defer rt.Close()

	if _, err := rt.Checkpoints.Capture("session", session, root, nil); err != nil {
		rt.Log.Error("recapture_session_checkpoint", err, map[string]any{"session": session})
	}
}

func main() {
	preCompact()
}
