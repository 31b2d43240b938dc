/*
controller.go - Assignment lifecycle controller

PURPOSE:
  Orchestrates request -> assign -> (accept | decline | timeout) ->
  reassign/park, persisting state transitions and triggering notification
  side effects.

STATE MACHINE:
  pending --assign--> assigned --accept--> accepted (terminal)
     ^                    |
     |                    +--decline/timeout--> pending (loops, or reassigned
     +--------------------+                     immediately when a candidate
                                                exists)
  cancelled is an externally-triggered terminal state.

TRANSITION RULES:
  - Every transition is a conditional write: the store enforces the status
    precondition atomically, so a racing Accept vs Timeout resolves to a
    well-defined loser instead of a silent double-write.
  - Claim + ledger increment commit in one transaction. A persistence
    failure on either step aborts both.
  - Events fire only after commit; dispatcher failures are logged and
    swallowed (notification never rolls back state).

SEE ALSO:
  - matcher.go: Candidate selection
  - store.go: Conditional transition contracts
  - api/sweeper.go: Drives Timeout on a schedule
*/
package assign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns all writes to the assignment state machine.
type Controller struct {
	Store      TxStore
	Directory  Directory
	Catalog    Catalog
	Dispatcher Dispatcher
	Logger     *zap.Logger

	// DefaultDeadline applies to requests created without an explicit
	// response deadline. Defaults to DefaultResponseDeadline.
	DefaultDeadline time.Duration

	// Now is swappable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewController wires a controller over the given collaborators. A nil
// dispatcher disables notifications; a nil logger discards logs.
func NewController(store TxStore, dir Directory, cat Catalog, disp Dispatcher, logger *zap.Logger) *Controller {
	if disp == nil {
		disp = NopDispatcher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		Store:           store,
		Directory:       dir,
		Catalog:         cat,
		Dispatcher:      disp,
		Logger:          logger,
		DefaultDeadline: DefaultResponseDeadline,
		Now:             time.Now,
	}
}

// Outcome is the result of an assign-producing operation.
type Outcome struct {
	Request   *AssignmentRequest
	Assistant *Contact // nil when the request is parked

	// NoAssistants is true when the matcher found nobody eligible. This is
	// a routine business condition, not an error.
	NoAssistants bool
}

// =============================================================================
// CREATE + ASSIGN
// =============================================================================

// Create validates and persists a new pending request, then immediately
// attempts assignment.
func (c *Controller) Create(ctx context.Context, r *AssignmentRequest) (*Outcome, error) {
	if !r.Start.Before(r.End) {
		return nil, ErrInvalidWindow
	}
	now := c.now()
	r.Status = StatusPending
	r.AssistantID = nil
	r.Date = Day(r.Date)
	if r.ResponseDeadline <= 0 {
		r.ResponseDeadline = c.DefaultDeadline
		if r.ResponseDeadline <= 0 {
			r.ResponseDeadline = DefaultResponseDeadline
		}
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := c.Store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}
	return c.assign(ctx, r)
}

// Assign finds an assignee for a pending request. A request that is assigned
// but past its response deadline is reassigned via the timeout path.
func (c *Controller) Assign(ctx context.Context, id RequestID) (*Outcome, error) {
	r, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusAssigned && r.ResponseExpired(c.now()) {
		return c.Timeout(ctx, id)
	}
	if r.Status != StatusPending {
		return nil, &StateError{RequestID: id, Status: r.Status, Wanted: StatusPending}
	}
	return c.assign(ctx, r)
}

// assign runs the matcher and commits the claim. ErrNoAssistantsAvailable
// is absorbed into the outcome: the request stays parked in pending with no
// assignee, declined_by untouched, and no assignment event is emitted.
func (c *Controller) assign(ctx context.Context, r *AssignmentRequest) (*Outcome, error) {
	matcher := NewMatcher(c.Directory, c.Store, c.Store)
	selected, err := matcher.Select(ctx, r)
	if errors.Is(err, ErrNoAssistantsAvailable) {
		c.Logger.Info("request parked, no assistants available",
			zap.String("request_id", string(r.ID)))
		return &Outcome{Request: r, NoAssistants: true}, nil
	}
	if err != nil {
		return nil, err
	}

	now := c.now()
	assistantID := AssistantID(selected.ID)
	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.Claim(ctx, r.ID, assistantID, now); err != nil {
			return err
		}
		return s.RecordAssignment(ctx, assistantID, now)
	})
	if err != nil {
		return nil, err
	}

	updated, err := c.load(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("request assigned",
		zap.String("request_id", string(r.ID)),
		zap.String("assistant_id", selected.ID))
	c.emit(ctx, EventAssigned, updated, nil, selected)

	return &Outcome{Request: updated, Assistant: selected}, nil
}

// =============================================================================
// ACCEPT
// =============================================================================

// Accept records the assignee's confirmation. Idempotent when the same
// assistant accepts twice; any other caller gets ErrNotAssignedToYou.
func (c *Controller) Accept(ctx context.Context, id RequestID, assistant AssistantID) (*AssignmentRequest, error) {
	r, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusAccepted {
		if r.AssistantID != nil && *r.AssistantID == assistant {
			return r, nil // already accepted by the same assistant
		}
		return nil, &NotAssignedError{RequestID: id, AssignedTo: r.AssistantID, Caller: assistant}
	}
	if r.Status != StatusAssigned {
		return nil, &StateError{RequestID: id, Status: r.Status, Wanted: StatusAssigned}
	}
	if r.AssistantID == nil || *r.AssistantID != assistant {
		return nil, &NotAssignedError{RequestID: id, AssignedTo: r.AssistantID, Caller: assistant}
	}

	if err := c.Store.MarkAccepted(ctx, id, assistant, c.now()); err != nil {
		return nil, err
	}
	c.Logger.Info("request accepted",
		zap.String("request_id", string(id)),
		zap.String("assistant_id", string(assistant)))
	return c.load(ctx, id)
}

// =============================================================================
// DECLINE / TIMEOUT
// =============================================================================

// Decline records the assignee's refusal and immediately tries to reassign.
// The decliner is permanently excluded from this request.
func (c *Controller) Decline(ctx context.Context, id RequestID, assistant AssistantID) (*Outcome, error) {
	return c.release(ctx, id, assistant, EventDeclined, false)
}

// Timeout is the system-driven equivalent of a decline, attributed to the
// currently assigned assistant. It is a precondition failure, never a
// silent success, when the request was already accepted or the deadline has
// not passed - the sweeper relies on this to make stale scans no-ops.
func (c *Controller) Timeout(ctx context.Context, id RequestID) (*Outcome, error) {
	r, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.AcceptedAt != nil || r.Status == StatusAccepted {
		return nil, ErrAlreadyAccepted
	}
	if r.Status != StatusAssigned || r.AssistantID == nil {
		return nil, &StateError{RequestID: id, Status: r.Status, Wanted: StatusAssigned}
	}
	if !r.ResponseExpired(c.now()) {
		return nil, ErrResponseNotExpired
	}
	return c.release(ctx, id, *r.AssistantID, EventTimedOut, true)
}

// release is the shared decline/timeout path: park the request, record the
// refusal, reassign, and emit a single event carrying both the old and the
// (possibly nil) new assistant.
func (c *Controller) release(ctx context.Context, id RequestID, assistant AssistantID, evType EventType, expired bool) (*Outcome, error) {
	r, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.AcceptedAt != nil || r.Status == StatusAccepted {
		return nil, ErrAlreadyAccepted
	}
	if r.Status != StatusAssigned {
		return nil, &StateError{RequestID: id, Status: r.Status, Wanted: StatusAssigned}
	}
	if r.AssistantID == nil || *r.AssistantID != assistant {
		return nil, &NotAssignedError{RequestID: id, AssignedTo: r.AssistantID, Caller: assistant}
	}

	if err := c.Store.Release(ctx, id, assistant, c.now()); err != nil {
		return nil, err
	}
	c.Logger.Info("request released",
		zap.String("request_id", string(id)),
		zap.String("assistant_id", string(assistant)),
		zap.Bool("timed_out", expired))

	parked, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := c.assign(ctx, parked)
	if err != nil {
		return nil, err
	}

	old := c.contact(ctx, string(assistant))
	c.emit(ctx, evType, out.Request, old, out.Assistant)
	return out, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves a non-terminal request to cancelled. Stylist-initiated; the
// scheduler itself never produces this transition.
func (c *Controller) Cancel(ctx context.Context, id RequestID) (*AssignmentRequest, error) {
	r, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusAccepted || r.Status == StatusCancelled {
		return nil, &StateError{RequestID: id, Status: r.Status, Wanted: StatusPending}
	}
	if err := c.Store.Cancel(ctx, id, c.now()); err != nil {
		return nil, err
	}
	return c.load(ctx, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) load(ctx context.Context, id RequestID) (*AssignmentRequest, error) {
	r, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	if r == nil {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

// contact resolves a directory id, degrading to a bare-id contact when the
// directory has no record.
func (c *Controller) contact(ctx context.Context, id string) *Contact {
	ct, err := c.Directory.Lookup(ctx, id)
	if err != nil || ct == nil {
		return &Contact{ID: id}
	}
	return ct
}

// emit enriches and dispatches an event. Delivery failures never affect the
// already-committed transition.
func (c *Controller) emit(ctx context.Context, evType EventType, r *AssignmentRequest, old, selected *Contact) {
	ev := Event{
		Type:         evType,
		Request:      *r,
		Stylist:      *c.contact(ctx, string(r.StylistID)),
		OldAssistant: old,
		NewAssistant: selected,
	}
	if svc, err := c.Catalog.GetService(ctx, r.ServiceID); err == nil {
		ev.Service = svc
	}
	if err := c.Dispatcher.Dispatch(ctx, ev); err != nil {
		c.Logger.Warn("notification delivery failed",
			zap.String("request_id", string(r.ID)),
			zap.String("event", string(evType)),
			zap.Error(err))
	}
}
