/*
store.go - Persistence interfaces for the assignment scheduler

PURPOSE:
  Defines the interface between the domain logic and the database. All
  coordination between concurrent invocations happens through these
  stores - there is no in-process shared state.

KEY INTERFACES:
  RequestStore: Assignment request persistence with CONDITIONAL transitions
  LedgerStore:  Round-robin fairness counters (getOrCreate, recordAssignment)
  Directory:    Read-only identity/role source (external collaborator)
  Catalog:      Read-only service lookup
  TxStore:      Transactional wrapper for atomic multi-write operations

CONDITIONAL TRANSITIONS:
  Claim/Release/MarkAccepted are conditional updates: the write itself
  enforces the status precondition (update-where-status-matches), so two
  racing invocations collapse to a well-defined loser-gets-
  ErrRequestStateChanged outcome instead of silent double-assignment.

ATOMICITY:
  The controller wraps claim + ledger increment in WithTx so a persistence
  failure on either step aborts both. The ledger is never incremented
  without the request's new assignee committing alongside it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - assign/store/memory.go: In-memory for testing

SEE ALSO:
  - controller.go: The only writer of request transitions
*/
package assign

import (
	"context"
	"time"
)

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestFilter narrows List. Nil fields match everything.
type RequestFilter struct {
	Status    *RequestStatus
	StylistID *StylistID
}

// RequestStore persists assignment requests.
//
// Get returns (nil, nil) for a missing id; callers translate that to
// ErrRequestNotFound. The conditional transitions return
// ErrRequestStateChanged when the WHERE-guard matches no row for an
// existing request.
type RequestStore interface {
	// Save inserts or replaces a request.
	Save(ctx context.Context, r *AssignmentRequest) error

	// Get returns the request or (nil, nil) if absent.
	Get(ctx context.Context, id RequestID) (*AssignmentRequest, error)

	// List returns requests matching the filter, newest first.
	List(ctx context.Context, f RequestFilter) ([]AssignmentRequest, error)

	// AssignedOn returns all requests on the given day holding an assistant:
	// status assigned or accepted. Input to conflict detection.
	AssignedOn(ctx context.Context, day time.Time) ([]AssignmentRequest, error)

	// Claim atomically sets assistant/status/assigned_at where the request
	// is still pending.
	Claim(ctx context.Context, id RequestID, assistant AssistantID, at time.Time) error

	// Release atomically moves an assigned, unaccepted request back to
	// pending, clears the assignee, and appends decliner to declined_by.
	Release(ctx context.Context, id RequestID, decliner AssistantID, at time.Time) error

	// MarkAccepted atomically records acceptance where the request is
	// assigned to the given assistant and not yet accepted.
	MarkAccepted(ctx context.Context, id RequestID, assistant AssistantID, at time.Time) error

	// Cancel moves a non-terminal request to cancelled.
	Cancel(ctx context.Context, id RequestID, at time.Time) error
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore keeps the round-robin fairness state. Entries are created
// lazily at parity (zero assignments) so new assistants enter the rotation
// on equal footing.
type LedgerStore interface {
	// GetOrCreate returns the entry for the assistant, creating a zero-count
	// entry if absent.
	GetOrCreate(ctx context.Context, id AssistantID) (*LedgerEntry, error)

	// Entries returns ledger entries for all assistants. Missing assistants
	// simply have no entry.
	Entries(ctx context.Context) ([]LedgerEntry, error)

	// RecordAssignment increments the counter and stamps last_assigned_at.
	RecordAssignment(ctx context.Context, id AssistantID, at time.Time) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// Store is everything the controller writes through.
type Store interface {
	RequestStore
	LedgerStore
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back; partial state is never visible.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EXTERNAL COLLABORATORS (read-only)
// =============================================================================

// Directory is the identity & role source. The scheduler treats it as a
// read-only view of who holds the assistant role and how to reach people.
type Directory interface {
	// AssistantRoleHolders returns every active user holding the assistant
	// role.
	AssistantRoleHolders(ctx context.Context) ([]Contact, error)

	// Lookup returns contact details for any user id (stylist or assistant),
	// or (nil, nil) if unknown.
	Lookup(ctx context.Context, id string) (*Contact, error)
}

// Catalog resolves service references for notification enrichment.
type Catalog interface {
	// GetService returns the service or (nil, nil) if absent.
	GetService(ctx context.Context, id ServiceID) (*Service, error)
}
