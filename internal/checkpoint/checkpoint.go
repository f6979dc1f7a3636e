// Package checkpoint implements whole-tree snapshot capture, load, and
// subtree-relative change detection (spec.md §4.D).
package checkpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/hashengine"
)

// Checkpoint is a point-in-time manifest of a directory tree.
type Checkpoint struct {
	CreatedAt time.Time           `json:"created_at"`
	Type      string              `json:"type"`
	Root      string              `json:"root"`
	Patterns  []string            `json:"patterns"`
	Files     hashengine.Manifest `json:"files"`
}

// Info summarizes a checkpoint for listing.
type Info struct {
	Type      string
	ID        string
	CreatedAt time.Time
	FileCount int
}

// Store persists checkpoints under a project directory, one subdirectory
// per (type, id) pair, each holding a checkpoint.json.
type Store struct {
	fs         afero.Fs
	projectDir string
	engine     *hashengine.Engine
	blobs      *blobstore.Store
}

// New constructs a checkpoint Store rooted at projectDir (the
// <config-root>/projects/<project-slug> directory). Blob capture uses
// blobs for durable byte retrieval.
func New(fs afero.Fs, projectDir string, engine *hashengine.Engine, blobs *blobstore.Store) *Store {
	return &Store{fs: fs, projectDir: projectDir, engine: engine, blobs: blobs}
}

// subdir returns the on-disk subdirectory name for (typ, id), matching
// spec.md §6's layout: sessions live directly under <session-id>, agents
// under agent-<agent-id>.
func subdir(typ, id string) string {
	if typ == "agent" {
		return "agent-" + id
	}
	return id
}

func (s *Store) checkpointPath(typ, id string) string {
	return filepath.Join(s.projectDir, subdir(typ, id), "checkpoint.json")
}

// Capture builds a manifest from find_files(root, patterns), persists it,
// and puts every file's bytes into the blob store so its content remains
// retrievable even if the working tree changes later.
func (s *Store) Capture(typ, id, root string, patterns []string) (bool, error) {
	files, err := hashengine.FindFiles(s.fs, root, patterns)
	if err != nil {
		return false, fmt.Errorf("checkpoint: find files: %w", err)
	}
	manifest := hashengine.BuildManifest(s.engine, s.fs, files, root)

	for _, f := range files {
		if _, _, err := s.blobs.Put(f); err != nil {
			continue // fail-soft: a single unreadable file does not abort the checkpoint
		}
	}

	cp := Checkpoint{
		CreatedAt: time.Now(),
		Type:      typ,
		Root:      root,
		Patterns:  patterns,
		Files:     manifest,
	}

	path := s.checkpointPath(typ, id)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return false, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return false, fmt.Errorf("checkpoint: write: %w", err)
	}
	return true, nil
}

// Load reads a checkpoint by (type, id). Returns ok=false if absent.
func (s *Store) Load(typ, id string) (*Checkpoint, bool, error) {
	path := s.checkpointPath(typ, id)
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return nil, false, nil
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, false, nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, false, fmt.Errorf("checkpoint: parse %s: %w", path, err)
	}
	return &cp, true, nil
}

// HasChangedSince reports whether directory's current state differs from
// the subset of cp's manifest that lies beneath directory, after
// rewriting checkpoint paths from "directory-relative-to-root" form to
// "directory-relative" form (spec.md §4.D's subtree relativization).
func (s *Store) HasChangedSince(cp *Checkpoint, directory string, patterns []string) (bool, error) {
	subset, err := relativize(cp, directory)
	if err != nil {
		return false, err
	}

	files, err := hashengine.FindFiles(s.fs, directory, patterns)
	if err != nil {
		return false, fmt.Errorf("checkpoint: find files: %w", err)
	}
	current := hashengine.BuildManifest(s.engine, s.fs, files, directory)

	return hashengine.Diff(subset, current), nil
}

// relativize rewrites cp.Files (relative to cp.Root) into the subset
// relative to directory, a subtree of cp.Root.
func relativize(cp *Checkpoint, directory string) (hashengine.Manifest, error) {
	relPrefix, err := filepath.Rel(cp.Root, directory)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: relativize: %w", err)
	}
	relPrefix = filepath.ToSlash(relPrefix)

	subset := hashengine.Manifest{}
	if relPrefix == "." {
		for p, h := range cp.Files {
			subset[p] = h
		}
		return subset, nil
	}

	prefix := relPrefix + "/"
	for p, h := range cp.Files {
		if strings.HasPrefix(p, prefix) {
			subset[strings.TrimPrefix(p, prefix)] = h
		}
	}
	return subset, nil
}

// List enumerates every checkpoint under the project directory, sorted
// newest first.
func (s *Store) List() ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.projectDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.projectDir, e.Name(), "checkpoint.json")
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		id := e.Name()
		typ := cp.Type
		if typ == "agent" {
			id = strings.TrimPrefix(id, "agent-")
		}
		infos = append(infos, Info{Type: typ, ID: id, CreatedAt: cp.CreatedAt, FileCount: len(cp.Files)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// LiveHashes returns the union of every blob hash referenced by any
// checkpoint currently on disk, used by the GC component alongside
// validation.Store.LiveHashes to determine which blobs are reachable.
func (s *Store) LiveHashes() (map[string]struct{}, error) {
	entries, err := afero.ReadDir(s.fs, s.projectDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: live_hashes: %w", err)
	}

	live := map[string]struct{}{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.projectDir, e.Name(), "checkpoint.json")
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		for _, h := range cp.Files {
			live[h] = struct{}{}
		}
	}
	return live, nil
}

// Delete removes the checkpoint for (typ, id) immediately, used when a
// session or agent's end is known precisely rather than waiting for
// age-based eviction (spec.md §3 ownership notes).
func (s *Store) Delete(typ, id string) error {
	dir := filepath.Join(s.projectDir, subdir(typ, id))
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("checkpoint: delete %s/%s: %w", typ, id, err)
	}
	return nil
}

// CleanupOlderThan removes every checkpoint (and its enclosing directory)
// whose stored timestamp exceeds horizon.
func (s *Store) CleanupOlderThan(horizon time.Duration) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.projectDir)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: cleanup: %w", err)
	}

	cutoff := time.Now().Add(-horizon)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.projectDir, e.Name())
		path := filepath.Join(dir, "checkpoint.json")
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		if cp.CreatedAt.Before(cutoff) {
			if err := s.fs.RemoveAll(dir); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
