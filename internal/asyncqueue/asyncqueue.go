// Package asyncqueue implements the async hook queue for post-tool-use
// events: enqueueing the same (session, directory, plugin, hook) key
// while a prior execution is pending coalesces to one in-flight run
// (spec.md §4.I).
package asyncqueue

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cwstudio/han-hooks/internal/decision"
)

// Result is the outcome of one dedup'd execution.
type Result struct {
	Success bool
	Output  string
	Failure *Failure
}

// Failure is a structured failure record: a human-facing error summary
// plus a rerun hint the user can run independently to reproduce it.
type Failure struct {
	Summary   string
	RerunHint string
}

// Key identifies one coalescing group.
type Key struct {
	Session   string
	Directory string
	Plugin    string
	Hook      string
}

func (k Key) string() string {
	return strings.Join([]string{k.Session, k.Directory, k.Plugin, k.Hook}, "\x1f")
}

// Run is the function an Enqueue caller supplies to actually perform the
// (already deduplicated) execution.
type Run func(ctx context.Context) (output string, err error)

// Queue coalesces concurrent enqueues sharing a Key via singleflight, and
// remembers the last result per key for poll-based retrieval.
type Queue struct {
	group singleflight.Group

	mu      sync.Mutex
	results map[string]Result
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{results: map[string]Result{}}
}

// Enqueue runs fn for key, coalescing with any in-flight run already
// registered for the same key, and records the last result.
func (q *Queue) Enqueue(ctx context.Context, key Key, command string, offendingFile string, fn Run) Result {
	k := key.string()

	v, _, _ := q.group.Do(k, func() (any, error) {
		output, err := fn(ctx)
		var res Result
		if err != nil {
			res = Result{
				Success: false,
				Failure: &Failure{
					Summary:   truncate(err.Error(), 2000),
					RerunHint: decision.SubstituteFiles(command, []string{offendingFile}),
				},
			}
		} else {
			res = Result{Success: true, Output: output}
		}

		q.mu.Lock()
		q.results[k] = res
		q.mu.Unlock()
		return res, nil
	})

	if res, ok := v.(Result); ok {
		return res
	}
	return Result{}
}

// Poll returns the last recorded result for key, if any.
func (q *Queue) Poll(key Key) (Result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	res, ok := q.results[key.string()]
	return res, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
