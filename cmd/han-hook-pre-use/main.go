// Command han-hook-pre-use is the BLOCKING hook invoked before a tool
// executes. Unlike the rest of the han-hook-* binaries it can fail the
// tool call: if a prior hook run in this session already failed under
// fail-fast (internal/slotlock's failure sentinel), it blocks further
// tool use rather than letting the session continue on top of a broken
// validation state.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

const (
	exitAllow = 0
	exitBlock = 1
)

func preToolUse() int {
	root, err := os.Getwd()
	if err != nil {
		return exitAllow // cannot even resolve cwd; fail open
	}

	rt, err := hanrun.Open(context.Background(), hanrun.ResolveSession(), root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-pre-use: bootstrap:", err)
		return exitAllow // configuration trouble never blocks a tool call
	}
	defer rt.Close()

	offending, failed := rt.Slots.CheckFailure()
	if !failed {
		return exitAllow
	}

	fmt.Fprintf(os.Stderr, "han-hook-pre-use: blocked — %q failed earlier this session under fail-fast\n", offending)
	rt.Log.Failure("pre_use_block", "fail_fast_sentinel", map[string]any{"hook_instance": offending})
	return exitBlock
}

func main() {
	os.Exit(preToolUse())
}
