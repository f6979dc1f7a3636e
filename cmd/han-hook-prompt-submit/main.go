// Command han-hook-prompt-submit runs before each prompt is sent to the
// model. It never blocks submission, but surfaces a prior fail-fast
// failure to the user so a broken validation state doesn't go unnoticed
// across turns.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cwstudio/han-hooks/internal/hanrun"
)

func promptSubmit() {
	root, err := os.Getwd()
	if err != nil {
		return
	}

	rt, err := hanrun.Open(context.Background(), hanrun.ResolveSession(), root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-prompt-submit: bootstrap:", err)
		return
	}
	defer rt.Close()

	if offending, failed := rt.Slots.CheckFailure(); failed {
		fmt.Fprintf(os.Stderr, "han-hook-prompt-submit: %q is still failing under fail-fast\n", offending)
	}
}

func main() {
	promptSubmit()
}
