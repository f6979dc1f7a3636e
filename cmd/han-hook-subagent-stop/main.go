// Command han-hook-subagent-stop runs when a subagent finishes. It
// evicts that agent's checkpoint immediately: an agent's working set is
// gone for good once it stops, so there is no reason to wait for the
// age-based horizon to reclaim it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func subagentStop() {
	if len(os.Args) < 2 {
		return
	}
	agentID := os.Args[1]

	root, err := os.Getwd()
	if err != nil {
		return
	}

	rt, err := hanrun.Open(context.Background(), hanrun.ResolveSession(), root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-subagent-stop: bootstrap:", err)
		return
	}
	defer rt.Close()

	if err := rt.Checkpoints.Delete("agent", agentID); err != nil {
		rt.Log.Error("delete_agent_checkpoint", err, map[string]any{"agent": agentID})
	}
}

func main() {
	subagentStop()
}
