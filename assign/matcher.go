/*
matcher.go - Round-robin candidate selection

PURPOSE:
  Computes the eligible-assistant set for a request and picks the next
  assignee by least-total/least-recent ordering.

SELECTION PIPELINE:
  1. roleHolders = directory's assistant role holders
  2. busy        = conflict detector output for this request's window
  3. eligible    = roleHolders - busy - declined_by(request)
  4. empty eligible -> ErrNoAssistantsAvailable (request stays parked)
  5. every eligible id gets a ledger entry (parity for new assistants)
  6. sort by (total_assignments ASC, last_assigned_at ASC nulls-first,
     assistant id ASC) and take the first

TIE-BREAK:
  Fewest lifetime assignments wins; among ties, idle longest wins; among
  ties with no history, stable order by id. The id tie-break makes
  selection deterministic for tests and across replicas.

SEE ALSO:
  - conflict.go: Busy-set computation
  - controller.go: Commits the selection and increments the ledger
*/
package assign

import (
	"context"
	"fmt"
	"sort"
)

// Matcher selects the next assignee for a request.
type Matcher struct {
	Directory Directory
	Ledger    LedgerStore
	Conflicts *ConflictDetector
}

// NewMatcher wires a matcher over the given stores.
func NewMatcher(dir Directory, ledger LedgerStore, requests RequestStore) *Matcher {
	return &Matcher{
		Directory: dir,
		Ledger:    ledger,
		Conflicts: &ConflictDetector{Requests: requests},
	}
}

// Select returns the contact of the next assistant for the request, or
// ErrNoAssistantsAvailable when every role holder is busy or has declined.
// Select does not mutate the request; the caller commits the claim and the
// ledger increment together.
func (m *Matcher) Select(ctx context.Context, r *AssignmentRequest) (*Contact, error) {
	holders, err := m.Directory.AssistantRoleHolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistant role holders: %w", err)
	}

	busy, err := m.Conflicts.BusyAssistants(ctx, r.Date, r.Start, r.End, r.ID)
	if err != nil {
		return nil, err
	}

	var eligible []Contact
	for _, h := range holders {
		id := AssistantID(h.ID)
		if busy[id] || r.HasDeclined(id) {
			continue
		}
		eligible = append(eligible, h)
	}
	if len(eligible) == 0 {
		return nil, ErrNoAssistantsAvailable
	}

	// New assistants enter the rotation at parity.
	entries := make(map[AssistantID]*LedgerEntry, len(eligible))
	for _, c := range eligible {
		entry, err := m.Ledger.GetOrCreate(ctx, AssistantID(c.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger entry for %s: %w", c.ID, err)
		}
		entries[AssistantID(c.ID)] = entry
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := entries[AssistantID(eligible[i].ID)], entries[AssistantID(eligible[j].ID)]
		if a.TotalAssignments != b.TotalAssignments {
			return a.TotalAssignments < b.TotalAssignments
		}
		switch {
		case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
			return true
		case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
			return false
		case a.LastAssignedAt != nil && b.LastAssignedAt != nil &&
			!a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	selected := eligible[0]
	return &selected, nil
}
