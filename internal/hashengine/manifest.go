// Package hashengine computes content hashes, walks directories honoring
// ignore rules, and builds/diffs manifests (spec.md §4.A).
package hashengine

import "sort"

// Manifest maps a relative file path to its content hash.
type Manifest map[string]string

// SortedPaths returns the manifest's paths in deterministic order, used
// for stable JSON encoding and test assertions.
func (m Manifest) SortedPaths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Diff reports whether current differs from baseline per spec.md §4.A's
// has_changes rule: any path's hash changed, any path was added, or any
// baseline path no longer exists.
func Diff(baseline, current Manifest) bool {
	if len(baseline) != len(current) {
		return true
	}
	for path, hash := range baseline {
		ch, ok := current[path]
		if !ok || ch != hash {
			return true
		}
	}
	return false
}
