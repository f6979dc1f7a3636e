// Package cycledetect flags files whose content hash returns to a
// previously-seen state across a sequence of hook runs, indicating two
// hooks undoing each other's edits (spec.md §4.H).
package cycledetect

import "sync"

// Cycle describes one file whose current hash reoccurs earlier in its
// recorded history.
type Cycle struct {
	File                  string
	CurrentHash           string
	PreviouslySeenAtIndex int
}

// Detector tracks, per directory and file path, the sequence of hashes
// observed across successive record calls. It never fails; it can only
// report the absence of cycles.
type Detector struct {
	mu      sync.Mutex
	history map[string]map[string][]string // directory -> path -> hash history
}

// New constructs an empty Detector.
func New() *Detector {
	return &Detector{history: map[string]map[string][]string{}}
}

// Record appends manifest's hashes to directory's per-file history and
// reports any cycles newly detected. Consecutive duplicate hashes for the
// same path are compressed (not appended twice), and the most recent
// entry is excluded from the cycle search so a no-op re-record is never
// flagged as a cycle.
func (d *Detector) Record(directory string, manifest map[string]string) (bool, []Cycle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dirHistory, ok := d.history[directory]
	if !ok {
		dirHistory = map[string][]string{}
		d.history[directory] = dirHistory
	}

	var cycles []Cycle
	for path, hash := range manifest {
		hist := dirHistory[path]
		if len(hist) > 0 && hist[len(hist)-1] == hash {
			continue // no-op re-record: not appended, not a cycle
		}

		if len(hist) > 0 {
			if idx := indexOf(hist[:len(hist)-1], hash); idx >= 0 {
				cycles = append(cycles, Cycle{
					File:                  path,
					CurrentHash:           hash,
					PreviouslySeenAtIndex: idx,
				})
			}
		}

		dirHistory[path] = append(hist, hash)
	}

	return len(cycles) > 0, cycles
}

func indexOf(hist []string, hash string) int {
	for i, h := range hist {
		if h == hash {
			return i
		}
	}
	return -1
}

// Export snapshots the detector's history for persistence across process
// invocations (the core's hook binaries are spawned per event, so a
// Detector built fresh every run would never see the "returns to a
// previously-seen state" transition spec.md §4.H describes; callers
// persist the export alongside the session's slot-lock directory and
// Load it back in on the next invocation).
func (d *Detector) Export() map[string]map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]map[string][]string, len(d.history))
	for dir, files := range d.history {
		fc := make(map[string][]string, len(files))
		for path, hist := range files {
			histCopy := make([]string, len(hist))
			copy(histCopy, hist)
			fc[path] = histCopy
		}
		out[dir] = fc
	}
	return out
}

// Load reconstructs a Detector from a prior Export. A nil history starts
// empty.
func Load(history map[string]map[string][]string) *Detector {
	if history == nil {
		history = map[string]map[string][]string{}
	}
	return &Detector{history: history}
}
