/*
Package assign implements the assistant assignment scheduler.

PURPOSE:
  This package contains the domain types and algorithms for pairing a
  stylist's help request with an available assistant: workload-balanced
  round-robin selection, time-window conflict detection, and a
  decline/timeout-driven reassignment loop.

KEY CONCEPTS IN THIS FILE (types.go):
  - AssignmentRequest: A stylist's help request and its lifecycle state
  - LedgerEntry: Per-assistant fairness counters (round-robin state)
  - TimeOfDay: Minute-granularity clock time within a service day
  - Contact: Directory record for a stylist or assistant
  - Service: Catalog entry (name, duration, price)

DESIGN PRINCIPLES:
  1. Explicit states: Status is a real enum, not inferred from side fields
  2. Append-only decline history: DeclinedBy grows, never resets
  3. Type safety: Strong typing for IDs prevents mixing request/assistant IDs
  4. Store-mediated coordination: no in-process shared state between
     invocations; all races are resolved by conditional writes

SEE ALSO:
  - controller.go: Lifecycle transitions (assign/accept/decline/timeout)
  - matcher.go: Round-robin candidate selection
  - conflict.go: Time-window overlap detection
  - store.go: Persistence interfaces
*/
package assign

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type AssistantID string
type StylistID string
type ServiceID string

// =============================================================================
// TIME OF DAY - Minute-granularity clock time within a service day
// =============================================================================

// TimeOfDay is minutes since midnight. Requests carry a date plus a
// [Start, End) window expressed in salon-local time.
type TimeOfDay int

// ParseTimeOfDay parses "15:04"-style clock times.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (use HH:MM): %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }

// Overlaps reports whether [t, tEnd) intersects [o, oEnd).
// Back-to-back windows (tEnd == o) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Day truncates a timestamp to UTC midnight. Requests are keyed by day for
// conflict detection.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ASSIGNMENT REQUEST - A stylist's help request
// =============================================================================

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAssigned  RequestStatus = "assigned"
	StatusAccepted  RequestStatus = "accepted"
	StatusCancelled RequestStatus = "cancelled"
)

// DefaultResponseDeadline is how long an assistant has to accept or decline
// before the sweeper reassigns the request.
const DefaultResponseDeadline = 2 * time.Hour

// AssignmentRequest is the unit of work flowing through the scheduler.
//
// Lifecycle: created in StatusPending with no assistant; the matcher moves it
// to StatusAssigned; it terminates in StatusAccepted, loops back to
// StatusPending on decline/timeout, or is cancelled externally. A request may
// remain pending indefinitely if no assistant is eligible (parked).
//
// INVARIANTS:
//   - DeclinedBy never contains AssistantID while status is StatusAssigned.
//   - An assistant in DeclinedBy is never reselected for this request.
//   - AcceptedAt is set iff status is StatusAccepted.
type AssignmentRequest struct {
	ID        RequestID
	StylistID StylistID

	// What the client booked
	ClientName string
	ServiceID  ServiceID
	Notes      string

	// When help is needed
	Date  time.Time // UTC midnight
	Start TimeOfDay
	End   TimeOfDay

	// How long the assignee has to respond before the sweeper steps in
	ResponseDeadline time.Duration

	Status      RequestStatus
	AssistantID *AssistantID
	AssignedAt  *time.Time
	AcceptedAt  *time.Time

	// Assistants who refused this request. Append-only for the lifetime of
	// the request; survives reassignment.
	DeclinedBy []AssistantID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDeclined reports whether the assistant already refused this request.
func (r *AssignmentRequest) HasDeclined(id AssistantID) bool {
	for _, d := range r.DeclinedBy {
		if d == id {
			return true
		}
	}
	return false
}

// ResponseExpired reports whether the current assignee's response window has
// passed. Always false unless the request is assigned and unaccepted.
func (r *AssignmentRequest) ResponseExpired(now time.Time) bool {
	if r.Status != StatusAssigned || r.AssignedAt == nil || r.AcceptedAt != nil {
		return false
	}
	deadline := r.ResponseDeadline
	if deadline <= 0 {
		deadline = DefaultResponseDeadline
	}
	return now.After(r.AssignedAt.Add(deadline))
}

// =============================================================================
// ASSIGNMENT LEDGER - Round-robin fairness state
// =============================================================================

// LedgerEntry tracks how often and how recently an assistant has been
// assigned. This is a fairness heuristic, not an audit log: the counter is
// monotonic and never decremented, even when an assignment is later declined.
type LedgerEntry struct {
	AssistantID      AssistantID
	TotalAssignments int
	LastAssignedAt   *time.Time
}

// =============================================================================
// DIRECTORY & CATALOG - External collaborator records
// =============================================================================

// Contact is a read-only directory record for a salon user.
type Contact struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Service is a catalog entry for a bookable salon service.
type Service struct {
	ID              ServiceID
	Name            string
	DurationMinutes int
	Price           decimal.Decimal
}
