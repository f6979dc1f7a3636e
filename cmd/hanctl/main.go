// Command hanctl is the operator CLI for the han core: running garbage
// collection on demand, reporting whether a session's fail-fast failure
// sentinel is set, and listing the checkpoints held for a project.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/checkpoint"
	"github.com/cwstudio/han-hooks/internal/gc"
	"github.com/cwstudio/han-hooks/internal/hanconfig"
	"github.com/cwstudio/han-hooks/internal/hanrun"
	"github.com/cwstudio/han-hooks/internal/hashengine"
	"github.com/cwstudio/han-hooks/internal/pathslug"
	"github.com/cwstudio/han-hooks/internal/slotlock"
	"github.com/cwstudio/han-hooks/internal/validation"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: hanctl <gc|status|checkpoints> [args]")
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 1
	}

	switch os.Args[1] {
	case "gc":
		return runGC()
	case "status":
		return runStatus()
	case "checkpoints":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: hanctl checkpoints <project-dir>")
			return 1
		}
		return runCheckpoints(os.Args[2])
	default:
		usage()
		return 1
	}
}

// runGC sweeps every project directory under <config-root>/projects, not
// just one: a checkpoint.Store is scoped to a single project, but the
// blob store underneath every one of them is shared, so blob GC has to
// see the live-hash union across all projects before it removes anything
// (running gc.Sweeper.Run once per project would let an earlier project's
// narrow view evict blobs a later project's checkpoints still reference).
func runGC() int {
	ctx := context.Background()
	cfg := hanconfig.Load(filepath.Join(hanrun.ConfigRoot(), "han.toml"))
	fs := afero.NewOsFs()

	dbPath := filepath.Join(hanrun.ConfigRoot(), "han", "validations.db")
	store, err := validation.Open(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl gc: open validation store:", err)
		return 1
	}
	defer store.Close()

	blobs, err := blobstore.New(fs, filepath.Join(hanrun.ConfigRoot(), "han", "blobs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl gc: open blob store:", err)
		return 1
	}

	hashes, err := hashengine.NewEngine(fs, 4096)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl gc: hash engine:", err)
		return 1
	}

	validationsEvicted, err := store.DeleteOlderThan(ctx, time.Now().Add(-cfg.ValidationHorizon))
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl gc: delete stale validations:", err)
	}

	projectsRoot := filepath.Join(hanrun.ConfigRoot(), "projects")
	projectEntries, err := afero.ReadDir(fs, projectsRoot)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "hanctl gc: list projects:", err)
		return 1
	}

	checkpointsEvicted := 0
	live := map[string]struct{}{}
	if fromValidations, err := store.LiveHashes(ctx); err == nil {
		for h := range fromValidations {
			live[h] = struct{}{}
		}
	}

	for _, e := range projectEntries {
		if !e.IsDir() {
			continue
		}
		cp := checkpoint.New(fs, filepath.Join(projectsRoot, e.Name()), hashes, blobs)

		n, err := cp.CleanupOlderThan(cfg.CheckpointMaxAge)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hanctl gc: cleanup checkpoints:", e.Name(), err)
		}
		checkpointsEvicted += n

		if fromCheckpoints, err := cp.LiveHashes(); err == nil {
			for h := range fromCheckpoints {
				live[h] = struct{}{}
			}
		}
	}

	blobsRemoved, err := blobs.GC(live)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl gc: blob gc:", err)
		return 1
	}

	report := gc.Report{
		ValidationsEvicted: validationsEvicted,
		CheckpointsEvicted: checkpointsEvicted,
		BlobsRemoved:       blobsRemoved,
	}
	fmt.Println(report.Summary())
	return 0
}

func runStatus() int {
	session := hanrun.ResolveSession()
	if session == "" {
		fmt.Fprintln(os.Stderr, "hanctl status: no session resolved (set HAN_SESSION_ID)")
		return 1
	}

	sessionDir := filepath.Join(os.TempDir(), "han-hooks", session)
	fs := afero.NewOsFs()
	cfg := hanconfig.Load(filepath.Join(hanrun.ConfigRoot(), "han.toml"))
	slots := slotlock.New(fs, sessionDir, cfg.HookParallelism, cfg.NoLock, cfg.AcquireTimeout, cfg.LockStaleTimeout)

	fmt.Printf("session: %s\n", session)
	if offending, failed := slots.CheckFailure(); failed {
		fmt.Printf("failure sentinel: %s\n", offending)
	} else {
		fmt.Println("failure sentinel: none")
	}
	return 0
}

func runCheckpoints(projectDir string) int {
	root, err := pathslug.Canonicalize(projectDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl checkpoints:", err)
		return 1
	}

	fs := afero.NewOsFs()
	hashes, err := hashengine.NewEngine(fs, 4096)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl checkpoints:", err)
		return 1
	}
	blobs, err := blobstore.New(fs, filepath.Join(hanrun.ConfigRoot(), "han", "blobs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl checkpoints:", err)
		return 1
	}

	projectDirResolved := filepath.Join(hanrun.ConfigRoot(), "projects", pathslug.ProjectSlug(root))
	cp := checkpoint.New(fs, projectDirResolved, hashes, blobs)

	infos, err := cp.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hanctl checkpoints:", err)
		return 1
	}
	for _, info := range infos {
		fmt.Printf("%-8s %-40s %s  %d files\n", info.Type, info.ID, info.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), info.FileCount)
	}
	return 0
}

func main() {
	os.Exit(run())
}
