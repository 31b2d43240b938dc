/*
conflict.go - Time-window conflict detection

PURPOSE:
  Given a candidate time window, determine which assistants are already
  committed to an overlapping assignment on the same day. Leaf utility
  consumed by the matcher.

OVERLAP RULE:
  Two windows [a,b) and [c,d) conflict iff a < d && c < b. This covers all
  three sub-cases: new-starts-during-existing, existing-starts-during-new,
  and fully-nested. No buffer/travel time is modeled; back-to-back windows
  (end == start) do not conflict.
*/
package assign

import (
	"context"
	"fmt"
	"time"
)

// ConflictDetector finds assistants whose existing assignments collide with
// a proposed window.
type ConflictDetector struct {
	Requests RequestStore
}

// BusyAssistants returns the set of assistant ids holding an assigned or
// accepted request on day whose [start, end) window overlaps the given one. The
// request identified by exclude is ignored so a request never conflicts
// with itself during reassignment.
func (cd *ConflictDetector) BusyAssistants(
	ctx context.Context,
	day time.Time,
	start, end TimeOfDay,
	exclude RequestID,
) (map[AssistantID]bool, error) {
	assigned, err := cd.Requests.AssignedOn(ctx, Day(day))
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments for %s: %w", Day(day).Format("2006-01-02"), err)
	}

	busy := make(map[AssistantID]bool)
	for _, r := range assigned {
		if r.ID == exclude || r.AssistantID == nil {
			continue
		}
		if Overlaps(start, end, r.Start, r.End) {
			busy[*r.AssistantID] = true
		}
	}
	return busy, nil
}
