// Command han-hook-notification runs when the host emits a notification
// event (permission prompts, idle warnings, and similar). It has no
// decision to make; it exists so the core's operational log captures
// these events alongside everything else a session does.
package main

import (
	"os"

	"github.com/cwstudio/han-hooks/internal/hanlog"
)

func main() {
	log := hanlog.New("notification")
	message := ""
	if len(os.Args) > 1 {
		message = os.Args[1]
	}
	log.Debug("host_notification", map[string]any{"message": message})
}
