// Package decision implements the hook evaluation engine: given a hook
// invocation it decides whether to run, skip, or filter to a subset of
// files, and records the outcome so later evaluations can skip unchanged
// work (spec.md §4.F).
package decision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/cwstudio/han-hooks/internal/hanlog"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/validation"
)

// Kind enumerates the possible decisions.
type Kind int

const (
	Run Kind = iota
	RunWithFilteredFiles
	SkipCacheHit
	SkipNoRelevantChange
	ErrorKind
)

func (k Kind) String() string {
	switch k {
	case Run:
		return "run"
	case RunWithFilteredFiles:
		return "run-with-filtered-files"
	case SkipCacheHit:
		return "skip-cache-hit"
	case SkipNoRelevantChange:
		return "skip-no-relevant-change"
	case ErrorKind:
		return "error"
	}
	return "unknown"
}

// Decision is the result of EvaluateHook.
type Decision struct {
	Kind          Kind
	FilteredFiles []string // populated for RunWithFilteredFiles
	Reason        string   // populated for ErrorKind
}

// Change is the shape of one session-recorded file change, mirroring
// sessionchange.Change without importing that package: the engine only
// needs a read view, and pinning it to a concrete struct here keeps the
// dependency direction one-way.
type Change struct {
	AbsolutePath string
	Operation    string
}

// ChangeLister is the narrow slice of internal/sessionchange.Tracker the
// engine needs for restricted-mode evaluation.
type ChangeLister interface {
	ListChanges(ctx context.Context, session string) ([]Change, error)
}

// Request bundles one evaluate_hook call's parameters.
type Request struct {
	Session                 string
	Plugin                  string
	Hook                    string
	RootDir                 string
	Patterns                []string
	Command                 string
	CheckSessionChangesOnly bool
}

// Engine ties together the hash engine and validation store to implement
// evaluate_hook. Execution, slot acquisition, and cycle-detector feeding
// live in Execute (execute.go), called by the orchestrator after a Run or
// RunWithFilteredFiles decision (spec.md §4.F steps 6-7).
type Engine struct {
	fs         afero.Fs
	hashes     *hashengine.Engine
	validation *validation.Store
	changes    ChangeLister
	log        *hanlog.Logger
}

// New constructs an Engine.
func New(fs afero.Fs, hashes *hashengine.Engine, store *validation.Store, changes ChangeLister) *Engine {
	return &Engine{
		fs:         fs,
		hashes:     hashes,
		validation: store,
		changes:    changes,
		log:        hanlog.New("decision"),
	}
}

// CommandHash fingerprints a resolved command string (spec.md §4.F step 2).
func CommandHash(command string) string {
	h := sha256.Sum256([]byte(command))
	return hex.EncodeToString(h[:])
}

// EvaluateHook implements spec.md §4.F's algorithm and decision table.
func (e *Engine) EvaluateHook(ctx context.Context, req Request) (Decision, error) {
	root, err := filepath.Abs(req.RootDir)
	if err != nil {
		return Decision{Kind: ErrorKind, Reason: "invalid root: " + err.Error()}, nil
	}
	cmdHash := CommandHash(req.Command)

	if req.Session == "" {
		return Decision{Kind: Run}, nil
	}

	files, sessionChanged, err := e.selectFiles(ctx, req, root)
	if err != nil {
		e.log.Error("select_files", err, map[string]any{"root": root})
		return Decision{Kind: Run}, nil // fail-soft: treat as cache miss
	}
	if req.CheckSessionChangesOnly && len(files) == 0 {
		return Decision{Kind: SkipNoRelevantChange}, nil
	}

	manifest := hashengine.BuildManifest(e.hashes, e.fs, files, root)

	rows, err := e.validation.List(ctx, req.Session, req.Plugin, req.Hook, root)
	if err != nil {
		e.log.Error("list_validations", err, map[string]any{"root": root})
		return Decision{Kind: Run}, nil // fail-soft: cache miss on read error
	}

	if len(rows) == 0 {
		if req.CheckSessionChangesOnly {
			return e.runDecision(req, files), nil
		}
		if anyPathSessionChanged(root, manifest, sessionChanged) {
			return e.runDecision(req, files), nil
		}
		return Decision{Kind: SkipNoRelevantChange}, nil
	}

	validated := make(map[string]validation.Record, len(rows))
	for _, r := range rows {
		validated[r.Path] = r
	}

	for path, hash := range manifest {
		v, ok := validated[path]
		if !ok || v.Hash != hash || v.CommandHash != cmdHash {
			return e.runDecision(req, files), nil
		}
	}
	for path := range validated {
		if _, ok := manifest[path]; !ok {
			return e.runDecision(req, files), nil // deleted file, invariant #4
		}
	}

	return Decision{Kind: SkipCacheHit}, nil
}

func (e *Engine) runDecision(req Request, files []string) Decision {
	if req.CheckSessionChangesOnly {
		return Decision{Kind: RunWithFilteredFiles, FilteredFiles: files}
	}
	return Decision{Kind: Run}
}

// selectFiles resolves the active manifest's file list (spec.md §4.F step
// 3): either every matching file under root, or (restricted mode) only
// the session-changed files under root. It also returns the raw
// session-changed absolute-path set, needed by the full-manifest "no
// validations yet" branch of the decision table.
func (e *Engine) selectFiles(ctx context.Context, req Request, root string) (files []string, sessionChanged map[string]bool, err error) {
	if !req.CheckSessionChangesOnly {
		files, err = hashengine.FindFiles(e.fs, root, req.Patterns)
		if err != nil {
			return nil, nil, err
		}
		if e.changes != nil {
			all, changesErr := e.changes.ListChanges(ctx, req.Session)
			if changesErr == nil {
				sessionChanged = make(map[string]bool, len(all))
				for _, c := range all {
					sessionChanged[c.AbsolutePath] = true
				}
			}
		}
		return files, sessionChanged, nil
	}

	if e.changes == nil {
		return nil, nil, nil
	}
	all, err := e.changes.ListChanges(ctx, req.Session)
	if err != nil {
		return nil, nil, err
	}

	sessionChanged = make(map[string]bool, len(all))
	var restricted []string
	for _, c := range all {
		sessionChanged[c.AbsolutePath] = true
		rel, relErr := filepath.Rel(root, c.AbsolutePath)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if !hashengine.MatchesPatterns(filepath.ToSlash(rel), req.Patterns) {
			continue
		}
		restricted = append(restricted, c.AbsolutePath)
	}
	return restricted, sessionChanged, nil
}

// anyPathSessionChanged reports whether any path in manifest (root-
// relative) corresponds to an absolute path the session has touched.
func anyPathSessionChanged(root string, manifest hashengine.Manifest, sessionChanged map[string]bool) bool {
	if len(sessionChanged) == 0 {
		return false
	}
	for path := range manifest {
		if sessionChanged[filepath.Join(root, path)] {
			return true
		}
	}
	return false
}
