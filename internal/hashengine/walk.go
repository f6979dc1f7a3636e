package hashengine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// cacheDirNames are canonical package-manager cache directories skipped
// regardless of ignore files (spec.md §4.A).
var cacheDirNames = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".git":         true,
}

// FindFiles enumerates files under root matching any glob in patterns,
// honoring nested ignore files (git-style), skipping hidden directories
// and canonical cache directories. Empty patterns match all files.
func FindFiles(fs afero.Fs, root string, patterns []string) ([]string, error) {
	var out []string
	ignores := map[string]*ignore.GitIgnore{} // dir -> compiled ignore rules for that dir

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped silently
		}
		if path == root {
			loadIgnoreFile(fs, root, ignores)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		base := filepath.Base(path)

		if info.IsDir() {
			if strings.HasPrefix(base, ".") || cacheDirNames[base] {
				return filepath.SkipDir
			}
			if isIgnoredDir(fs, root, path, ignores) {
				return filepath.SkipDir
			}
			loadIgnoreFile(fs, path, ignores)
			return nil
		}

		if isIgnoredFile(root, path, ignores) {
			return nil
		}
		if len(patterns) > 0 && !matchesAny(rel, patterns) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MatchesPatterns reports whether rel (a root-relative, slash-separated
// path) matches any of patterns, using the same doublestar semantics
// FindFiles applies during a walk. Exported for collaborators (such as
// the decision engine's restricted-mode file selection) that need to
// test a single path without a full filesystem walk.
func MatchesPatterns(rel string, patterns []string) bool {
	return matchesAny(rel, patterns)
}

// matchesAny reports whether rel matches any of patterns using doublestar
// semantics ("**" crosses directories, "*.ext" matches at any depth when
// written "**/*.ext").
func matchesAny(rel string, patterns []string) bool {
	relSlash := filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relSlash); ok {
			return true
		}
		// Bare "*.ext" is treated as matching at any depth, per spec.md.
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match("**/"+p, relSlash); ok {
				return true
			}
		}
	}
	return false
}

func loadIgnoreFile(fs afero.Fs, dir string, ignores map[string]*ignore.GitIgnore) {
	path := filepath.Join(dir, ".gitignore")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	gi := ignore.CompileIgnoreLines(lines...)
	ignores[dir] = gi
}

// isIgnoredDir checks path (a directory) against every ancestor ignore
// file from root down to path's parent.
func isIgnoredDir(fs afero.Fs, root, path string, ignores map[string]*ignore.GitIgnore) bool {
	return matchesAncestorIgnores(root, path, ignores)
}

func isIgnoredFile(root, path string, ignores map[string]*ignore.GitIgnore) bool {
	return matchesAncestorIgnores(root, path, ignores)
}

func matchesAncestorIgnores(root, path string, ignores map[string]*ignore.GitIgnore) bool {
	dir := filepath.Dir(path)
	for {
		if gi, ok := ignores[dir]; ok {
			rel, err := filepath.Rel(dir, path)
			if err == nil && gi.MatchesPath(rel) {
				return true
			}
		}
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

// BuildManifest hashes each file and drops unreadable files silently.
func BuildManifest(e *Engine, fs afero.Fs, files []string, root string) Manifest {
	m := make(Manifest, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			continue
		}
		h, err := e.HashFile(f)
		if err != nil {
			continue
		}
		m[filepath.ToSlash(rel)] = h
	}
	return m
}

// HasChanges reports whether root's current manifest (filtered by
// patterns) differs from baselineManifest.
func HasChanges(e *Engine, fs afero.Fs, root string, patterns []string, baseline Manifest) (bool, error) {
	files, err := FindFiles(fs, root, patterns)
	if err != nil {
		return false, err
	}
	current := BuildManifest(e, fs, files, root)
	return Diff(baseline, current), nil
}

// FindDirsWithMarkers enumerates directories under root that directly
// contain a file matching any of markerGlobs, honoring the same ignore
// rules as FindFiles.
func FindDirsWithMarkers(fs afero.Fs, root string, markerGlobs []string) ([]string, error) {
	var dirs []string
	ignores := map[string]*ignore.GitIgnore{}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		base := filepath.Base(path)
		if info.IsDir() {
			if path != root && (strings.HasPrefix(base, ".") || cacheDirNames[base]) {
				return filepath.SkipDir
			}
			if path != root && isIgnoredDir(fs, root, path, ignores) {
				return filepath.SkipDir
			}
			loadIgnoreFile(fs, path, ignores)
			return nil
		}
		if isIgnoredFile(root, path, ignores) {
			return nil
		}
		for _, g := range markerGlobs {
			if ok, _ := doublestar.Match(g, base); ok {
				dirs = append(dirs, filepath.Dir(path))
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dedupe(dirs), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
