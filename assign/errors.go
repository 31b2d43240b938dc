/*
errors.go - Centralized error types for the assignment scheduler

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP handlers, the sweeper) branch on these with errors.Is.

ERROR CATEGORIES:
  1. Lookup errors - referenced request/assistant does not exist
  2. State errors - operation preconditions not met
  3. Matching outcomes - ErrNoAssistantsAvailable is an expected business
     condition, not a defect; handlers surface it as a successful result
     with a distinguishing flag

SEE ALSO:
  - controller.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package assign

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRequestNotFound is returned when the referenced request id does not
	// exist. No side effects.
	ErrRequestNotFound = errors.New("request not found")

	// ErrAssistantNotFound is returned when a directory lookup misses.
	ErrAssistantNotFound = errors.New("assistant not found")

	// ErrServiceNotFound is returned when a catalog lookup misses.
	ErrServiceNotFound = errors.New("service not found")

	// ErrNoAssistantsAvailable is the matcher's expected outcome when every
	// role holder is busy or has declined. The request stays parked in
	// pending; this is a routine business condition, not a failure.
	ErrNoAssistantsAvailable = errors.New("no assistants available")

	// ErrNotAssignedToYou is returned when an accept/decline comes from an
	// assistant other than the current assignee. No state change.
	ErrNotAssignedToYou = errors.New("request is not assigned to this assistant")

	// ErrAlreadyAccepted is returned when a decline or timeout targets a
	// request that was already accepted. The sweeper treats this as a no-op.
	ErrAlreadyAccepted = errors.New("request already accepted")

	// ErrRequestStateChanged is returned when a conditional write loses a
	// race: the request's status moved between the read and the write.
	ErrRequestStateChanged = errors.New("request state changed concurrently")

	// ErrResponseNotExpired is returned when a timeout is driven against a
	// request whose assignee still has time to respond.
	ErrResponseNotExpired = errors.New("response deadline has not passed")

	// ErrInvalidWindow is returned when a request's end does not follow its
	// start.
	ErrInvalidWindow = errors.New("invalid time window: end must be after start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotAssignedError reports an accept/decline from the wrong assistant.
type NotAssignedError struct {
	RequestID  RequestID
	AssignedTo *AssistantID
	Caller     AssistantID
}

func (e *NotAssignedError) Error() string {
	if e.AssignedTo == nil {
		return fmt.Sprintf("request %s has no assignee (caller: %s)", e.RequestID, e.Caller)
	}
	return fmt.Sprintf("request %s is assigned to %s, not %s", e.RequestID, *e.AssignedTo, e.Caller)
}

func (e *NotAssignedError) Unwrap() error { return ErrNotAssignedToYou }

// StateError reports a transition attempted from the wrong status.
type StateError struct {
	RequestID RequestID
	Status    RequestStatus
	Wanted    RequestStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("request %s is %s, expected %s", e.RequestID, e.Status, e.Wanted)
}

func (e *StateError) Unwrap() error { return ErrRequestStateChanged }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input or
// a precondition the caller can observe and correct.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotAssignedToYou) ||
		errors.Is(err, ErrAlreadyAccepted) ||
		errors.Is(err, ErrRequestStateChanged) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrAssistantNotFound) ||
		errors.Is(err, ErrServiceNotFound)
}
