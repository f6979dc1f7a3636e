// Command han-hook-post-use is the non-blocking hook invoked after every
// tool execution. It records the file change the tool just made (feeding
// the session change tracker, spec.md §4.E), then evaluates every plugin
// hook whose tool/file filters match this event and runs whichever ones
// the decision engine says are due.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cwstudio/han-hooks/internal/asyncqueue"
	"github.com/cwstudio/han-hooks/internal/decision"
	"github.com/cwstudio/han-hooks/internal/hanrun"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/hookdef"
)

func postToolUse() {
	if len(os.Args) < 2 {
		return
	}
	toolName := os.Args[1]

	root, err := os.Getwd()
	if err != nil {
		return
	}

	ctx := context.Background()
	session := hanrun.ResolveSession()

	rt, err := hanrun.Open(ctx, session, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "han-hook-post-use: bootstrap:", err)
		return
	}
	defer rt.Close()
	defer rt.SaveCycles()

	recordSessionChange(ctx, rt, session, toolName)

	var wg sync.WaitGroup
	for _, plugin := range rt.LoadPlugins() {
		for _, hook := range plugin.Hooks {
			if !hook.MatchesTool(toolName) {
				continue
			}
			dirs := scopeDirs(rt, root, hook)
			for _, dir := range dirs {
				if !fileFilterPasses(root, dir, hook) {
					continue
				}
				if hook.Async {
					wg.Add(1)
					go func(plugin hookdef.Plugin, hook hookdef.Definition, dir string) {
						defer wg.Done()
						runHook(ctx, rt, plugin, hook, session, dir)
					}(plugin, hook, dir)
					continue
				}
				runHook(ctx, rt, plugin, hook, session, dir)
			}
		}
	}
	wg.Wait()
}

// scopeDirs resolves which directories hook applies to: every directory
// under root containing one of its dirs_with markers, or just root when
// no marker filter is configured.
func scopeDirs(rt *hanrun.Runtime, root string, hook hookdef.Definition) []string {
	if len(hook.DirsWith) == 0 {
		return []string{root}
	}
	dirs, err := hashengine.FindDirsWithMarkers(rt.FS, root, hook.DirsWith)
	if err != nil || len(dirs) == 0 {
		return nil
	}
	return dirs
}

// fileFilterPasses applies hook's optional file filter against the
// env-reported FILE_PATH, relativized to dir. A hook with no file filter,
// or a tool with no FILE_PATH (e.g. Bash), always passes.
func fileFilterPasses(root, dir string, hook hookdef.Definition) bool {
	if len(hook.Files) == 0 {
		return true
	}
	filePath := os.Getenv("FILE_PATH")
	if filePath == "" {
		return true
	}
	rel, err := filepath.Rel(dir, filePath)
	if err != nil {
		return true
	}
	return hook.MatchesFile(filepath.ToSlash(rel))
}

func recordSessionChange(ctx context.Context, rt *hanrun.Runtime, session, toolName string) {
	if session == "" {
		return
	}
	if !strings.HasPrefix(toolName, "Write") && !strings.HasPrefix(toolName, "Edit") {
		return
	}
	filePath := os.Getenv("FILE_PATH")
	if filePath == "" {
		return
	}
	op := "write"
	if strings.HasPrefix(toolName, "Edit") {
		op = "edit"
	}
	if err := rt.Changes.RecordChange(ctx, session, filePath, op, time.Now().Unix()); err != nil {
		rt.Log.Error("record_session_change", err, map[string]any{"path": filePath})
	}
}

func runHook(ctx context.Context, rt *hanrun.Runtime, plugin hookdef.Plugin, hook hookdef.Definition, session, dir string) {
	req := decision.Request{
		Session:                 session,
		Plugin:                  plugin.Name,
		Hook:                    hook.Name,
		RootDir:                 dir,
		Patterns:                hook.IfChanged,
		Command:                 hook.Command,
		CheckSessionChangesOnly: true,
	}

	key := asyncqueue.Key{Session: session, Directory: dir, Plugin: plugin.Name, Hook: hook.Name}
	rt.Queue.Enqueue(ctx, key, hook.Command, dir, func(ctx context.Context) (string, error) {
		d, err := rt.Decision.EvaluateHook(ctx, req)
		if err != nil {
			return "", err
		}
		if d.Kind != decision.Run && d.Kind != decision.RunWithFilteredFiles {
			return "", nil
		}

		idle := time.Duration(0)
		if hook.IdleTimeout != nil {
			idle = hook.IdleTimeout.Duration
		}
		opts := decision.ExecuteOptions{
			HookInstance:   dir + "|" + plugin.Name + "|" + hook.Name,
			Files:          d.FilteredFiles,
			OverallTimeout: rt.Config.MCPTimeout,
			IdleTimeout:    idle,
			FailFast:       true,
		}
		res, err := rt.Decision.Execute(ctx, req, rt.Slots, rt.Cycles, opts)
		if err != nil {
			return "", err
		}
		if !res.Success {
			return res.Stderr, fmt.Errorf("hook %s/%s failed: %s", plugin.Name, hook.Name, res.Reason)
		}
		if res.Cycle {
			rt.Log.Failure("cycle_detected", "oscillating hook output", map[string]any{
				"plugin": plugin.Name, "hook": hook.Name, "dir": dir, "cycles": len(res.Cycles),
			})
		}
		return res.Stdout, nil
	})
}

func main() {
	postToolUse()
}
