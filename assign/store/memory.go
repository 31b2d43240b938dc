// Package store provides in-memory implementations of the assign storage
// interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/salonhub/assist-engine/assign"
)

// =============================================================================
// MEMORY STORE - In-memory TxStore implementation
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	requests map[assign.RequestID]*assign.AssignmentRequest
	ledger   map[assign.AssistantID]*assign.LedgerEntry
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[assign.RequestID]*assign.AssignmentRequest),
		ledger:   make(map[assign.AssistantID]*assign.LedgerEntry),
	}
}

// -----------------------------------------------------------------------------
// RequestStore
// -----------------------------------------------------------------------------

func (m *Memory) Save(_ context.Context, r *assign.AssignmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneRequest(r)
	m.requests[r.ID] = cp
	return nil
}

func (m *Memory) Get(_ context.Context, id assign.RequestID) (*assign.AssignmentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(r), nil
}

func (m *Memory) List(_ context.Context, f assign.RequestFilter) ([]assign.AssignmentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []assign.AssignmentRequest
	for _, r := range m.requests {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.StylistID != nil && r.StylistID != *f.StylistID {
			continue
		}
		result = append(result, *cloneRequest(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) AssignedOn(_ context.Context, day time.Time) ([]assign.AssignmentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day = assign.Day(day)
	var result []assign.AssignmentRequest
	for _, r := range m.requests {
		if (r.Status == assign.StatusAssigned || r.Status == assign.StatusAccepted) && r.Date.Equal(day) {
			result = append(result, *cloneRequest(r))
		}
	}
	return result, nil
}

func (m *Memory) Claim(_ context.Context, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return assign.ErrRequestNotFound
	}
	if r.Status != assign.StatusPending {
		return assign.ErrRequestStateChanged
	}
	aid := assistant
	r.Status = assign.StatusAssigned
	r.AssistantID = &aid
	assignedAt := at
	r.AssignedAt = &assignedAt
	r.UpdatedAt = at
	return nil
}

func (m *Memory) Release(_ context.Context, id assign.RequestID, decliner assign.AssistantID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return assign.ErrRequestNotFound
	}
	if r.Status != assign.StatusAssigned || r.AcceptedAt != nil ||
		r.AssistantID == nil || *r.AssistantID != decliner {
		return assign.ErrRequestStateChanged
	}
	r.Status = assign.StatusPending
	r.AssistantID = nil
	r.AssignedAt = nil
	if !r.HasDeclined(decliner) {
		r.DeclinedBy = append(r.DeclinedBy, decliner)
	}
	r.UpdatedAt = at
	return nil
}

func (m *Memory) MarkAccepted(_ context.Context, id assign.RequestID, assistant assign.AssistantID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return assign.ErrRequestNotFound
	}
	if r.Status != assign.StatusAssigned || r.AcceptedAt != nil ||
		r.AssistantID == nil || *r.AssistantID != assistant {
		return assign.ErrRequestStateChanged
	}
	acceptedAt := at
	r.Status = assign.StatusAccepted
	r.AcceptedAt = &acceptedAt
	r.UpdatedAt = at
	return nil
}

func (m *Memory) Cancel(_ context.Context, id assign.RequestID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return assign.ErrRequestNotFound
	}
	if r.Status == assign.StatusAccepted || r.Status == assign.StatusCancelled {
		return assign.ErrRequestStateChanged
	}
	r.Status = assign.StatusCancelled
	r.AssistantID = nil
	r.UpdatedAt = at
	return nil
}

// -----------------------------------------------------------------------------
// LedgerStore
// -----------------------------------------------------------------------------

func (m *Memory) GetOrCreate(_ context.Context, id assign.AssistantID) (*assign.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.ledger[id]
	if !ok {
		e = &assign.LedgerEntry{AssistantID: id}
		m.ledger[id] = e
	}
	return cloneEntry(e), nil
}

func (m *Memory) Entries(_ context.Context) ([]assign.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []assign.LedgerEntry
	for _, e := range m.ledger {
		result = append(result, *cloneEntry(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssistantID < result[j].AssistantID
	})
	return result, nil
}

func (m *Memory) RecordAssignment(_ context.Context, id assign.AssistantID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.ledger[id]
	if !ok {
		e = &assign.LedgerEntry{AssistantID: id}
		m.ledger[id] = e
	}
	e.TotalAssignments++
	t := at
	e.LastAssignedAt = &t
	return nil
}

// -----------------------------------------------------------------------------
// TxStore
// -----------------------------------------------------------------------------

// WithTx executes fn against a snapshot-backed view. On error the previous
// state is restored, mirroring the all-or-nothing contract of the SQL store.
func (m *Memory) WithTx(ctx context.Context, fn func(assign.Store) error) error {
	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.requests = snapshot.requests
		m.ledger = snapshot.ledger
		m.mu.Unlock()
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests map[assign.RequestID]*assign.AssignmentRequest
	ledger   map[assign.AssistantID]*assign.LedgerEntry
}

func (m *Memory) snapshotLocked() memorySnapshot {
	reqs := make(map[assign.RequestID]*assign.AssignmentRequest, len(m.requests))
	for k, v := range m.requests {
		reqs[k] = cloneRequest(v)
	}
	led := make(map[assign.AssistantID]*assign.LedgerEntry, len(m.ledger))
	for k, v := range m.ledger {
		led[k] = cloneEntry(v)
	}
	return memorySnapshot{requests: reqs, ledger: led}
}

func cloneRequest(r *assign.AssignmentRequest) *assign.AssignmentRequest {
	cp := *r
	if r.AssistantID != nil {
		id := *r.AssistantID
		cp.AssistantID = &id
	}
	if r.AssignedAt != nil {
		t := *r.AssignedAt
		cp.AssignedAt = &t
	}
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		cp.AcceptedAt = &t
	}
	cp.DeclinedBy = append([]assign.AssistantID(nil), r.DeclinedBy...)
	return &cp
}

func cloneEntry(e *assign.LedgerEntry) *assign.LedgerEntry {
	cp := *e
	if e.LastAssignedAt != nil {
		t := *e.LastAssignedAt
		cp.LastAssignedAt = &t
	}
	return &cp
}
