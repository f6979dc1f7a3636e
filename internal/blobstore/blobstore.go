// Package blobstore implements the content-addressed, deduplicated byte
// store sharded by hash prefix (spec.md §4.B).
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get when no blob exists for the given hash.
var ErrNotFound = errors.New("blobstore: blob not found")

// Store is a content-addressed blob store rooted at a directory.
type Store struct {
	fs   afero.Fs
	root string
	gcMu sync.Mutex // serializes gc against itself only, per spec.md §4.B
}

// New constructs a Store rooted at root. The root directory is created if
// absent.
func New(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root: %w", err)
	}
	return &Store{fs: fs, root: root}, nil
}

// shardPath returns <root>/<first-2-hex>/<full-hex> for a given hash.
func (s *Store) shardPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, prefix, hash)
}

// Put hashes sourcePath's content and copies its bytes into the store if
// not already present. Returns the content hash and the blob's final path.
// A blob already at the corresponding path is a no-op (dedup).
func (s *Store) Put(sourcePath string) (hash string, blobPath string, err error) {
	f, err := s.fs.Open(sourcePath)
	if err != nil {
		return "", "", fmt.Errorf("blobstore: open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", "", fmt.Errorf("blobstore: read source: %w", err)
	}
	hash = hex.EncodeToString(h.Sum(nil))
	blobPath = s.shardPath(hash)

	if exists, _ := afero.Exists(s.fs, blobPath); exists {
		return hash, blobPath, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("blobstore: rewind source: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		return "", "", fmt.Errorf("blobstore: create shard dir: %w", err)
	}

	tmpPath := blobPath + ".tmp-" + uuid.NewString()
	tmp, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("blobstore: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return "", "", fmt.Errorf("blobstore: write temp: %w", err)
	}
	if syncer, ok := tmp.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return "", "", fmt.Errorf("blobstore: close temp: %w", err)
	}

	if err := s.fs.Rename(tmpPath, blobPath); err != nil {
		s.fs.Remove(tmpPath)
		return "", "", fmt.Errorf("blobstore: rename into place: %w", err)
	}
	return hash, blobPath, nil
}

// Get reads the blob for hash. Returns ErrNotFound if absent.
func (s *Store) Get(hash string) ([]byte, error) {
	path := s.shardPath(hash)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: read %s: %w", hash, err)
	}
	return data, nil
}

// GC removes every blob whose hash is absent from liveHashes, then removes
// any shard directories left empty. Concurrent GC calls run one at a time
// (enforced here with a mutex). GC takes no lock against Put: a Put running
// at the same time can have its temporary file, or a new blob whose hash is
// not in liveHashes, removed.
func (s *Store) GC(liveHashes map[string]struct{}) (removed int, err error) {
	s.gcMu.Lock()
	defer s.gcMu.Unlock()

	shardInfos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return 0, fmt.Errorf("blobstore: list shards: %w", err)
	}

	for _, shard := range shardInfos {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(s.root, shard.Name())
		blobInfos, err := afero.ReadDir(s.fs, shardDir)
		if err != nil {
			continue
		}
		for _, blob := range blobInfos {
			if blob.IsDir() {
				continue
			}
			if _, live := liveHashes[blob.Name()]; !live {
				if err := s.fs.Remove(filepath.Join(shardDir, blob.Name())); err == nil {
					removed++
				}
			}
		}
		if remaining, err := afero.ReadDir(s.fs, shardDir); err == nil && len(remaining) == 0 {
			_ = s.fs.Remove(shardDir)
		}
	}
	return removed, nil
}
