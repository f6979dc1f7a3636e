package decision

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cwstudio/han-hooks/internal/cycledetect"
	"github.com/cwstudio/han-hooks/internal/executor"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/slotlock"
)

// ExecuteOptions configures one hook execution following a Run or
// RunWithFilteredFiles decision.
type ExecuteOptions struct {
	HookInstance   string
	Files          []string // filtered files when the decision was RunWithFilteredFiles, else nil
	OverallTimeout time.Duration
	IdleTimeout    time.Duration
	FailFast       bool
}

// ExecuteResult is the outcome of one hook execution plus the
// bookkeeping the decision engine performed around it.
type ExecuteResult struct {
	executor.Result
	Cycle     bool
	Cycles    []cycledetect.Cycle
	SlotIndex int
}

// Execute acquires a slot, runs the hook's command through the executor,
// and on success records validations, evicts stale rows, and feeds the
// cycle detector with the pre/post manifests (spec.md §4.F steps 6-7).
// On failure, no validations are recorded and, if failFast is set, the
// slot manager's failure sentinel is signaled.
func (e *Engine) Execute(ctx context.Context, req Request, slots *slotlock.Manager, cycles *cycledetect.Detector, opts ExecuteOptions) (ExecuteResult, error) {
	root, err := filepath.Abs(req.RootDir)
	if err != nil {
		return ExecuteResult{}, err
	}

	idx, err := slots.Acquire(opts.HookInstance)
	if err != nil {
		return ExecuteResult{}, err
	}
	defer slots.Release(idx)

	preFiles := opts.Files
	if len(preFiles) == 0 {
		preFiles, err = hashengine.FindFiles(e.fs, root, req.Patterns)
		if err != nil {
			e.log.Error("pre_manifest_find_files", err, map[string]any{"root": root})
		}
	}
	preManifest := hashengine.BuildManifest(e.hashes, e.fs, preFiles, root)

	command := req.Command
	if len(opts.Files) > 0 {
		command = SubstituteFiles(command, relativize(root, opts.Files))
	}

	res := executor.Run(ctx, command, root, opts.OverallTimeout, opts.IdleTimeout)

	var postFiles []string
	postFiles, findErr := hashengine.FindFiles(e.fs, root, req.Patterns)
	if findErr != nil {
		e.log.Error("post_manifest_find_files", findErr, map[string]any{"root": root})
		postFiles = preFiles
	}
	postManifest := hashengine.BuildManifest(e.hashes, e.fs, postFiles, root)

	if !res.Success {
		if opts.FailFast {
			if sigErr := slots.SignalFailure(opts.HookInstance); sigErr != nil {
				e.log.Error("signal_failure", sigErr, nil)
			}
		}
		return ExecuteResult{Result: res, SlotIndex: idx}, nil
	}

	cmdHash := CommandHash(req.Command)
	timestamp := time.Now().Unix()
	if recErr := e.validation.Record(ctx, req.Session, req.Plugin, req.Hook, root, cmdHash, postManifest, timestamp); recErr != nil {
		e.log.Error("record_validations", recErr, map[string]any{"root": root})
	}
	if _, delErr := e.validation.DeleteStale(ctx, req.Session, req.Plugin, req.Hook, root, postManifest.SortedPaths()); delErr != nil {
		e.log.Error("delete_stale", delErr, map[string]any{"root": root})
	}

	cycles.Record(root, preManifest)
	hasCycle, foundCycles := cycles.Record(root, postManifest)

	return ExecuteResult{Result: res, Cycle: hasCycle, Cycles: foundCycles, SlotIndex: idx}, nil
}

// relativize converts absolute paths under root to root-relative paths,
// for substitution into a hook's command template.
func relativize(root string, abs []string) []string {
	rel := make([]string, 0, len(abs))
	for _, p := range abs {
		r, err := filepath.Rel(root, p)
		if err != nil {
			continue
		}
		rel = append(rel, r)
	}
	return rel
}
