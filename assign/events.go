/*
events.go - Notification events emitted by the lifecycle controller

PURPOSE:
  The controller tells the notification collaborator what happened; the
  collaborator decides how to phrase it (email, push, in-app row). Events
  carry everything the collaborator needs so it never reaches back into
  the scheduler's stores.

DELIVERY CONTRACT:
  Events are emitted AFTER the state transition has committed. Dispatch
  failures are logged and swallowed - notification is fire-and-forget
  relative to the state machine and must never roll back a transition.

SEE ALSO:
  - controller.go: Emits these events
  - notify/dispatcher.go: Default dispatcher implementation
*/
package assign

import "context"

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	// EventAssigned fires when a request gains an assignee.
	EventAssigned EventType = "assistant_assigned"

	// EventDeclined fires when an assistant explicitly refuses. NewAssistant
	// is nil when the pool is exhausted and the request is parked.
	EventDeclined EventType = "assistant_declined"

	// EventTimedOut fires when the sweeper reassigns an unanswered request.
	// Distinct from EventDeclined so the stylist-facing message reads
	// "did not respond in time" rather than "declined".
	EventTimedOut EventType = "assignment_timed_out"
)

// Event carries a committed state transition to the notification collaborator.
type Event struct {
	Type    EventType
	Request AssignmentRequest

	// Enrichment for message building. Service may be nil if the catalog
	// lookup failed; notification copy degrades gracefully.
	Stylist Contact
	Service *Service

	// OldAssistant is set for declines and timeouts. NewAssistant is nil
	// when no eligible assistant remained.
	OldAssistant *Contact
	NewAssistant *Contact
}

// Dispatcher delivers events to stylists and assistants. Implementations
// must tolerate being called concurrently.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// NopDispatcher discards events. Used in tests and when notifications are
// disabled.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) error { return nil }
