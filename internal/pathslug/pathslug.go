// Package pathslug derives the stable directory-name components used by
// the on-disk layout: repo slugs, project slugs, and root-directory
// canonicalization.
package pathslug

import (
	"path/filepath"
	"strings"
)

// RepoSlug turns a git remote URL (or, for non-git directories, an
// absolute path) into the directory-safe slug used under
// <config-root>/han/repos/<repo-slug>/.
//
// Git remotes: strip the transport prefix ("git@", "https://"), strip a
// trailing ".git", then replace "/", ":", and "." with "-".
// Non-git directories: slugify the absolute path by replacing "/" and "."
// with "-".
func RepoSlug(remoteOrPath string) string {
	s := remoteOrPath
	if looksLikeGitRemote(s) {
		s = strings.TrimPrefix(s, "git@")
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		s = strings.TrimPrefix(s, "ssh://")
		s = strings.TrimSuffix(s, ".git")
		s = replaceAny(s, "/:.", "-")
		return s
	}
	s = replaceAny(s, "/.", "-")
	return strings.TrimPrefix(s, "-")
}

func looksLikeGitRemote(s string) bool {
	return strings.HasPrefix(s, "git@") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "ssh://")
}

func replaceAny(s, chars, to string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(chars, r) {
			b.WriteString(to)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProjectSlug turns an absolute project path into the slug used under
// <config-root>/projects/<project-slug>/: strip the leading "/", replace
// remaining "/" with "-".
func ProjectSlug(absProjectPath string) string {
	p := strings.TrimPrefix(absProjectPath, "/")
	return strings.ReplaceAll(p, "/", "-")
}

// Canonicalize resolves symlinks and returns a clean absolute path. Callers
// MUST canonicalize root directories exactly once and never compare a raw
// path against a canonical one (spec.md §4.A edge cases).
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet (e.g. a directory about to be created);
		// fall back to the cleaned absolute form.
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}
