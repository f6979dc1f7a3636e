// Package slotlock implements a cooperative, filesystem-visible
// semaphore bounding parallel hook execution per session (spec.md §4.G).
package slotlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
)

// ErrAcquireTimeout is returned by Acquire when no slot becomes available
// before the acquire timeout elapses.
var ErrAcquireTimeout = errors.New("slotlock: acquire timeout")

// slotRecord is the JSON body of a slot-<i>.lock file.
type slotRecord struct {
	PID          int       `json:"pid"`
	AcquiredAt   time.Time `json:"acquired_at"`
	HookInstance string    `json:"hook_instance"`
}

// Manager coordinates slot acquisition for a single session directory.
type Manager struct {
	fs             afero.Fs
	dir            string
	n              int
	disabled       bool
	acquireTimeout time.Duration
	staleTimeout   time.Duration
	pid            int
}

// DefaultParallelism returns max(1, NumCPU()/2), the spec's default N.
func DefaultParallelism() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// New constructs a Manager rooted at dir (typically
// <tmp>/han-hooks/<session-id>). If disabled is true, Acquire/Release are
// no-ops per spec.md's "locking may be globally disabled" configuration.
func New(fs afero.Fs, dir string, n int, disabled bool, acquireTimeout, staleTimeout time.Duration) *Manager {
	if n < 1 {
		n = DefaultParallelism()
	}
	return &Manager{
		fs:             fs,
		dir:            dir,
		n:              n,
		disabled:       disabled,
		acquireTimeout: acquireTimeout,
		staleTimeout:   staleTimeout,
		pid:            os.Getpid(),
	}
}

func (m *Manager) slotPath(i int) string {
	return filepath.Join(m.dir, fmt.Sprintf("slot-%d.lock", i))
}

// Acquire attempts to claim a slot index, reclaiming stale or dead-owner
// slots as it goes, backing off between attempts, and giving up with
// ErrAcquireTimeout once the configured acquire timeout elapses.
func (m *Manager) Acquire(hookInstance string) (int, error) {
	if m.disabled {
		return -1, nil
	}
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return 0, fmt.Errorf("slotlock: create session dir: %w", err)
	}

	deadline := time.Now().Add(m.acquireTimeout)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond

	for {
		m.reclaimDead()

		if idx, ok := m.tryClaimLowestFree(hookInstance); ok {
			return idx, nil
		}

		if time.Now().After(deadline) {
			return 0, ErrAcquireTimeout
		}
		time.Sleep(bo.NextBackOff())
	}
}

// tryClaimLowestFree scans indices [0, N) in order and attempts an
// atomic create-exclusive of the first free one.
func (m *Manager) tryClaimLowestFree(hookInstance string) (int, bool) {
	occupied := m.listOccupied()
	for i := 0; i < m.n; i++ {
		if occupied[i] {
			continue
		}
		rec := slotRecord{PID: m.pid, AcquiredAt: time.Now(), HookInstance: hookInstance}
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		f, err := m.fs.OpenFile(m.slotPath(i), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			continue // lost the race; another process created it first
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			m.fs.Remove(m.slotPath(i))
			continue
		}
		return i, true
	}
	return 0, false
}

func (m *Manager) listOccupied() map[int]bool {
	occupied := map[int]bool{}
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return occupied
	}
	for _, e := range entries {
		idx, ok := parseSlotIndex(e.Name())
		if ok {
			occupied[idx] = true
		}
	}
	return occupied
}

func parseSlotIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "slot-") || !strings.HasSuffix(name, ".lock") {
		return 0, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, "slot-"), ".lock")
	i, err := strconv.Atoi(mid)
	if err != nil {
		return 0, false
	}
	return i, true
}

// reclaimDead deletes every slot file whose owning process is no longer
// live or whose hold exceeds the stale timeout. Reads that race a
// concurrent deletion are tolerated.
func (m *Manager) reclaimDead() {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return
	}
	now := time.Now()
	for _, e := range entries {
		if _, ok := parseSlotIndex(e.Name()); !ok {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		data, err := afero.ReadFile(m.fs, path)
		if err != nil {
			continue // file disappeared between listing and reading; tolerated
		}
		var rec slotRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			m.fs.Remove(path)
			continue
		}
		if !processAlive(rec.PID) || now.Sub(rec.AcquiredAt) > m.staleTimeout {
			m.fs.Remove(path)
		}
	}
}

// processAlive reports whether pid refers to a live process, using the
// kill(pid, 0) liveness probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// Release deletes slot index's file if it still records this process's
// pid; otherwise it has already been reclaimed by another process, and
// Release leaves it alone.
func (m *Manager) Release(idx int) error {
	if m.disabled {
		return nil
	}
	path := m.slotPath(idx)
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil
	}
	var rec slotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	if rec.PID != m.pid {
		return nil
	}
	return m.fs.Remove(path)
}

// CleanupOwned deletes every slot file whose pid is this process's,
// typically called on crash recovery or graceful shutdown.
func (m *Manager) CleanupOwned() error {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if _, ok := parseSlotIndex(e.Name()); !ok {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		data, err := afero.ReadFile(m.fs, path)
		if err != nil {
			continue
		}
		var rec slotRecord
		if err := json.Unmarshal(data, &rec); err == nil && rec.PID == m.pid {
			m.fs.Remove(path)
		}
	}
	return nil
}

func (m *Manager) failurePath() string {
	return filepath.Join(m.dir, "failure.sentinel")
}

// SignalFailure writes a write-once failure sentinel naming hookInstance.
func (m *Manager) SignalFailure(hookInstance string) error {
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("slotlock: create session dir: %w", err)
	}
	exists, _ := afero.Exists(m.fs, m.failurePath())
	if exists {
		return nil
	}
	return afero.WriteFile(m.fs, m.failurePath(), []byte(hookInstance), 0o644)
}

// CheckFailure returns the offending hook instance and true if a failure
// sentinel is present.
func (m *Manager) CheckFailure() (string, bool) {
	data, err := afero.ReadFile(m.fs, m.failurePath())
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ClearFailure removes the failure sentinel.
func (m *Manager) ClearFailure() error {
	err := m.fs.Remove(m.failurePath())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
