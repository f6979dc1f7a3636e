// Command han-hook-stop runs at the end of a turn. It prints a summary
// of any fail-fast failure sentinel still standing, then clears it: a
// failure is reported to the user once per turn rather than repeating
// silently on every following tool call.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func stop() {
	root, err := os.Getwd()
	if err != nil {
		return
	}

	rt, err := hanrun.Open(context.Background(), hanrun.ResolveSession(), root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-stop: bootstrap:", err)
		return
	}
	defer rt.Close()

	offending, failed := rt.Slots.CheckFailure()
	if !failed {
		return
	}

	fmt.Fprintf(os.Stderr, "han-hook-stop: %q failed under fail-fast this turn\n", offending)
	if err := rt.Slots.ClearFailure(); err != nil {
		rt.Log.Error("clear_failure", err, nil)
	}
}

func main() {
	stop()
}
