// Command han-transcript-watch is a long-running companion process that
// watches the project's top-level directory for file changes (its
// subdirectories are not watched) and feeds them into the
// session change tracker (spec.md §4.E), as a supplement to the direct
// recording cmd/han-hook-post-use already does for tool calls it sees
// directly. It exists for changes made outside a recognized tool
// invocation — an editor save, a background script — that the per-event
// hook binaries never observe.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwstudio/han-hooks/internal/hanrun"
	"github.com/cwstudio/han-hooks/internal/transcript"
)

func watch() int {
	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-transcript-watch: getwd:", err)
		return 1
	}

	session := hanrun.ResolveSession()
	if session == "" {
		fmt.Fprintln(os.Stderr, "han-transcript-watch: no session resolved, nothing to attribute changes to")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := hanrun.Open(ctx, session, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-transcript-watch: bootstrap:", err)
		return 1
	}
	defer rt.Close()

	watcher, err := transcript.NewWatcher(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-transcript-watch: watch:", err)
		return 1
	}
	defer watcher.Close()

	now := func() int64 { return time.Now().Unix() }
	if err := transcript.Pump(ctx, watcher, rt.Changes, session, now); err != nil {
		if ctx.Err() != nil {
			return 0
		}
		fmt.Fprintln(os.Stderr, "han-transcript-watch: pump:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(watch())
}
