// Package hanrun wires the core's stores and collaborators together for
// a single cmd/han-hook-* process invocation: resolving the on-disk
// layout spec.md §6 fixes (config root, repo/project slugs, session temp
// directory) and constructing the hash engine, validation store,
// checkpoint store, blob store, session-change tracker, decision engine,
// slot manager, and cycle detector every hook binary needs.
//
// Each hook binary is spawned fresh per event by the host, so the cycle
// detector's in-memory history (internal/cycledetect) is round-tripped
// through a small JSON file in the session's temp directory rather than
// living only for one process's lifetime.
package hanrun

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/cwstudio/han-hooks/internal/asyncqueue"
	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/checkpoint"
	"github.com/cwstudio/han-hooks/internal/cycledetect"
	"github.com/cwstudio/han-hooks/internal/decision"
	"github.com/cwstudio/han-hooks/internal/hanconfig"
	"github.com/cwstudio/han-hooks/internal/hanlog"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/hookdef"
	"github.com/cwstudio/han-hooks/internal/pathslug"
	"github.com/cwstudio/han-hooks/internal/sessionchange"
	"github.com/cwstudio/han-hooks/internal/slotlock"
	"github.com/cwstudio/han-hooks/internal/validation"
)

// Runtime bundles every collaborator a hook binary needs, already opened
// against the real filesystem and the on-disk layout rooted at the
// resolved config directory.
type Runtime struct {
	Config      hanconfig.Config
	FS          afero.Fs
	Hashes      *hashengine.Engine
	Validation  *validation.Store
	Checkpoints *checkpoint.Store
	Blobs       *blobstore.Store
	Changes     *sessionchange.Tracker
	Decision    *decision.Engine
	Slots       *slotlock.Manager
	Cycles      *cycledetect.Detector
	Queue       *asyncqueue.Queue
	Log         *hanlog.Logger

	Session string
	Root    string

	sessionDir string
}

// ConfigRoot resolves <config-root>: HAN_CONFIG_ROOT if set, otherwise
// <home>/.claude (spec.md §6's blob-path example is rooted there).
func ConfigRoot() string {
	if v := os.Getenv("HAN_CONFIG_ROOT"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".claude")
}

func tmpRoot() string {
	return filepath.Join(os.TempDir(), "han-hooks")
}

// ResolveSession returns the session id a hook binary should use:
// HAN_SESSION_ID always wins (spec.md §6); otherwise the host-supplied
// CLAUDE_SESSION_ID env var; otherwise empty, which the decision engine
// treats as "no session" and always runs (spec.md §4.F).
func ResolveSession() string {
	if v := os.Getenv("HAN_SESSION_ID"); v != "" {
		return v
	}
	return os.Getenv("CLAUDE_SESSION_ID")
}

// Open resolves the current session and working directory into a fully
// wired Runtime. rootDir is typically the project directory the host
// reports (os.Getwd() when unspecified).
func Open(ctx context.Context, session, rootDir string) (*Runtime, error) {
	cfg := hanconfig.Load(filepath.Join(ConfigRoot(), "han.toml"))

	root, err := pathslug.Canonicalize(rootDir)
	if err != nil {
		return nil, fmt.Errorf("hanrun: canonicalize root: %w", err)
	}

	fs := afero.NewOsFs()

	hashes, err := hashengine.NewEngine(fs, 4096)
	if err != nil {
		return nil, fmt.Errorf("hanrun: hash engine: %w", err)
	}

	cfgRoot := ConfigRoot()
	dbPath := filepath.Join(cfgRoot, "han", "validations.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("hanrun: create config dir: %w", err)
	}
	store, err := validation.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("hanrun: open validation store: %w", err)
	}

	changes, err := sessionchange.New(store.DB())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("hanrun: session change tracker: %w", err)
	}

	blobs, err := blobstore.New(fs, filepath.Join(cfgRoot, "han", "blobs"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("hanrun: blob store: %w", err)
	}

	projectDir := filepath.Join(cfgRoot, "projects", pathslug.ProjectSlug(root))
	checkpoints := checkpoint.New(fs, projectDir, hashes, blobs)

	eng := decision.New(fs, hashes, store, decision.SessionTracker{Tracker: changes})

	sessionKey := session
	if sessionKey == "" {
		sessionKey = "no-session"
	}
	sessionDir := filepath.Join(tmpRoot(), sessionKey)
	slots := slotlock.New(fs, sessionDir, cfg.HookParallelism, cfg.NoLock, cfg.AcquireTimeout, cfg.LockStaleTimeout)
	cycles := loadCycles(fs, sessionDir)

	return &Runtime{
		Config:      cfg,
		FS:          fs,
		Hashes:      hashes,
		Validation:  store,
		Checkpoints: checkpoints,
		Blobs:       blobs,
		Changes:     changes,
		Decision:    eng,
		Slots:       slots,
		Cycles:      cycles,
		Queue:       asyncqueue.New(),
		Log:         hanlog.New("hanrun"),
		Session:     session,
		Root:        root,
		sessionDir:  sessionDir,
	}, nil
}

func cyclePath(sessionDir string) string {
	return filepath.Join(sessionDir, "cycle-history.json")
}

func loadCycles(fs afero.Fs, sessionDir string) *cycledetect.Detector {
	data, err := afero.ReadFile(fs, cyclePath(sessionDir))
	if err != nil {
		return cycledetect.Load(nil)
	}
	var history map[string]map[string][]string
	if err := json.Unmarshal(data, &history); err != nil {
		return cycledetect.Load(nil)
	}
	return cycledetect.Load(history)
}

// SaveCycles persists the detector's current history to the session temp
// directory so the next process invocation for this session continues
// the same hash-history sequence. Best-effort: a write failure is logged
// and otherwise ignored, consistent with the rest of the core's
// fail-soft I/O policy.
func (r *Runtime) SaveCycles() {
	data, err := json.Marshal(r.Cycles.Export())
	if err != nil {
		r.Log.Error("save_cycles_marshal", err, nil)
		return
	}
	if err := r.FS.MkdirAll(r.sessionDir, 0o755); err != nil {
		r.Log.Error("save_cycles_mkdir", err, nil)
		return
	}
	if err := afero.WriteFile(r.FS, cyclePath(r.sessionDir), data, 0o644); err != nil {
		r.Log.Error("save_cycles_write", err, nil)
	}
}

// Close releases the shared database handle. Hook binaries defer this
// once at the end of main.
func (r *Runtime) Close() error {
	return r.Validation.Close()
}

// pluginManifestPaths resolves which plugin manifest files this
// invocation should consider: HAN_PLUGIN_MANIFESTS as a colon-separated
// list if set (plugin discovery is precomputed and passed in, per
// spec.md §1's non-goals), otherwise every *.yaml file under
// <config-root>/han/plugins/.
func pluginManifestPaths() []string {
	if v := os.Getenv("HAN_PLUGIN_MANIFESTS"); v != "" {
		return strings.Split(v, ":")
	}
	matches, _ := filepath.Glob(filepath.Join(ConfigRoot(), "han", "plugins", "*.yaml"))
	return matches
}

// LoadPlugins parses every resolved plugin manifest. A manifest that
// fails to parse is logged and skipped rather than aborting the whole
// invocation (spec.md §7: "plugin manifest unparseable ... causes that
// plugin's hooks to be skipped, not a system error").
func (r *Runtime) LoadPlugins() []hookdef.Plugin {
	var plugins []hookdef.Plugin
	for _, path := range pluginManifestPaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			r.Log.Debug("load_plugin_manifest", map[string]any{"path": path, "error": err.Error()})
			continue
		}
		plugin, err := hookdef.Parse(data)
		if err != nil {
			r.Log.Failure("load_plugin_manifest", err.Error(), map[string]any{"path": path})
			continue
		}
		plugins = append(plugins, plugin)
	}
	return plugins
}
