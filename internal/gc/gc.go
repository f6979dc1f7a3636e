// Package gc implements periodic and on-demand cleanup of validation
// records, checkpoints, and orphaned blobs (spec.md §4.J).
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/cwstudio/han-hooks/internal/blobstore"
	"github.com/cwstudio/han-hooks/internal/checkpoint"
	"github.com/cwstudio/han-hooks/internal/hanlog"
	"github.com/cwstudio/han-hooks/internal/validation"
)

// Report summarizes one Run.
type Report struct {
	ValidationsEvicted int
	CheckpointsEvicted int
	BlobsRemoved       int
}

// Summary renders a human-readable one-liner for the admin CLI.
func (r Report) Summary() string {
	return fmt.Sprintf(
		"%s validations evicted, %s checkpoints evicted, %s blobs removed",
		humanize.Comma(int64(r.ValidationsEvicted)),
		humanize.Comma(int64(r.CheckpointsEvicted)),
		humanize.Comma(int64(r.BlobsRemoved)),
	)
}

// Sweeper ties the validation store, checkpoint store, and blob store
// together for periodic cleanup.
type Sweeper struct {
	validation *validation.Store
	checkpoint *checkpoint.Store
	blobs      *blobstore.Store
	log        *hanlog.Logger
}

// New constructs a Sweeper.
func New(store *validation.Store, cp *checkpoint.Store, blobs *blobstore.Store) *Sweeper {
	return &Sweeper{validation: store, checkpoint: cp, blobs: blobs, log: hanlog.New("gc")}
}

// Run evicts validation rows older than validationHorizon, checkpoints
// older than checkpointHorizon, and any blob unreachable from the
// surviving validations and checkpoints.
func (sw *Sweeper) Run(ctx context.Context, validationHorizon, checkpointHorizon time.Duration) (Report, error) {
	var report Report

	n, err := sw.validation.DeleteOlderThan(ctx, time.Now().Add(-validationHorizon))
	if err != nil {
		sw.log.Error("delete_stale_validations", err, nil)
	}
	report.ValidationsEvicted = n

	n, err = sw.checkpoint.CleanupOlderThan(checkpointHorizon)
	if err != nil {
		sw.log.Error("cleanup_checkpoints", err, nil)
	}
	report.CheckpointsEvicted = n

	live, err := sw.liveHashes(ctx)
	if err != nil {
		sw.log.Error("live_hashes", err, nil)
		return report, nil // fail-soft: skip blob GC this round rather than error the whole sweep
	}

	removed, err := sw.blobs.GC(live)
	if err != nil {
		sw.log.Error("blob_gc", err, nil)
		return report, nil
	}
	report.BlobsRemoved = removed

	return report, nil
}

// liveHashes unions the validation store's and checkpoint store's live
// hash sets, computed concurrently via errgroup since they are
// independent I/O-bound reads.
func (sw *Sweeper) liveHashes(ctx context.Context) (map[string]struct{}, error) {
	var (
		fromValidations map[string]struct{}
		fromCheckpoints map[string]struct{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fromValidations, err = sw.validation.LiveHashes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		fromCheckpoints, err = sw.checkpoint.LiveHashes()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make(map[string]struct{}, len(fromValidations)+len(fromCheckpoints))
	for h := range fromValidations {
		union[h] = struct{}{}
	}
	for h := range fromCheckpoints {
		union[h] = struct{}{}
	}
	return union, nil
}
