package decision

import (
	"context"

	"github.com/cwstudio/han-hooks/internal/sessionchange"
)

// SessionTracker adapts *sessionchange.Tracker to the engine's
// ChangeLister interface, translating sessionchange.Change into this
// package's Change without sessionchange needing to know about decision.
type SessionTracker struct {
	Tracker *sessionchange.Tracker
}

// ListChanges implements ChangeLister.
func (s SessionTracker) ListChanges(ctx context.Context, session string) ([]Change, error) {
	rows, err := s.Tracker.ListChanges(ctx, session)
	if err != nil {
		return nil, err
	}
	out := make([]Change, len(rows))
	for i, r := range rows {
		out[i] = Change{AbsolutePath: r.AbsolutePath, Operation: r.Operation}
	}
	return out, nil
}
