package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/notify"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRequest(id string) *assign.AssignmentRequest {
	created := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	return &assign.AssignmentRequest{
		ID:               assign.RequestID(id),
		StylistID:        "stylist-1",
		ClientName:       "Dana",
		ServiceID:        "svc-color",
		Notes:            "long hair, bring extra foils",
		Date:             time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Start:            assign.MustTimeOfDay("10:00"),
		End:              assign.MustTimeOfDay("11:30"),
		ResponseDeadline: 2 * time.Hour,
		Status:           assign.StatusPending,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestStore_SaveAndGetRequest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := sampleRequest("r1")
	r.DeclinedBy = []assign.AssistantID{"a7"}
	require.NoError(t, store.Save(ctx, r))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.StylistID, got.StylistID)
	assert.Equal(t, r.ClientName, got.ClientName)
	assert.Equal(t, r.ServiceID, got.ServiceID)
	assert.Equal(t, r.Notes, got.Notes)
	assert.True(t, got.Date.Equal(r.Date))
	assert.Equal(t, r.Start, got.Start)
	assert.Equal(t, r.End, got.End)
	assert.Equal(t, r.ResponseDeadline, got.ResponseDeadline)
	assert.Equal(t, assign.StatusPending, got.Status)
	assert.Equal(t, []assign.AssistantID{"a7"}, got.DeclinedBy)
	assert.Nil(t, got.AssistantID)
	assert.Nil(t, got.AssignedAt)
}

func TestStore_GetMissingRequest(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r1 := sampleRequest("r1")
	r2 := sampleRequest("r2")
	r2.StylistID = "stylist-2"
	require.NoError(t, store.Save(ctx, r1))
	require.NoError(t, store.Save(ctx, r2))
	require.NoError(t, store.Claim(ctx, "r2", "a1", time.Now().UTC()))

	all, err := store.List(ctx, assign.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := assign.StatusPending
	got, err := store.List(ctx, assign.RequestFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, assign.RequestID("r1"), got[0].ID)

	stylist := assign.StylistID("stylist-2")
	got, err = store.List(ctx, assign.RequestFilter{StylistID: &stylist})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, assign.RequestID("r2"), got[0].ID)
}

// =============================================================================
// CONDITIONAL TRANSITIONS
// =============================================================================

func TestStore_ClaimGuards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))
	require.NoError(t, store.Claim(ctx, "r1", "a1", at))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusAssigned, got.Status)
	require.NotNil(t, got.AssistantID)
	assert.Equal(t, assign.AssistantID("a1"), *got.AssistantID)
	require.NotNil(t, got.AssignedAt)
	assert.True(t, got.AssignedAt.Equal(at))

	// Second claim loses: the request is no longer pending.
	err = store.Claim(ctx, "r1", "a2", at.Add(time.Second))
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)

	// The losing write changed nothing.
	got, err = store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.AssistantID("a1"), *got.AssistantID)

	err = store.Claim(ctx, "missing", "a1", at)
	assert.ErrorIs(t, err, assign.ErrRequestNotFound)
}

func TestStore_ReleaseGuards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))
	require.NoError(t, store.Claim(ctx, "r1", "a1", at))

	// Wrong assistant cannot release.
	err := store.Release(ctx, "r1", "a2", at.Add(time.Minute))
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)

	require.NoError(t, store.Release(ctx, "r1", "a1", at.Add(time.Minute)))
	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusPending, got.Status)
	assert.Nil(t, got.AssistantID)
	assert.Nil(t, got.AssignedAt)
	assert.Equal(t, []assign.AssistantID{"a1"}, got.DeclinedBy)

	// Releasing a pending request is a state error.
	err = store.Release(ctx, "r1", "a1", at.Add(2*time.Minute))
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)
}

func TestStore_ReleaseAfterAccept(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))
	require.NoError(t, store.Claim(ctx, "r1", "a1", at))
	require.NoError(t, store.MarkAccepted(ctx, "r1", "a1", at.Add(time.Minute)))

	// Accepted requests cannot be released (timeout/decline race loser).
	err := store.Release(ctx, "r1", "a1", at.Add(2*time.Minute))
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)
}

func TestStore_MarkAcceptedGuards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))

	// Not assigned yet.
	err := store.MarkAccepted(ctx, "r1", "a1", at)
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)

	require.NoError(t, store.Claim(ctx, "r1", "a1", at))
	require.NoError(t, store.MarkAccepted(ctx, "r1", "a1", at.Add(time.Minute)))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusAccepted, got.Status)
	require.NotNil(t, got.AcceptedAt)
}

func TestStore_CancelGuards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))
	require.NoError(t, store.Cancel(ctx, "r1", at))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusCancelled, got.Status)

	err = store.Cancel(ctx, "r1", at.Add(time.Minute))
	assert.ErrorIs(t, err, assign.ErrRequestStateChanged)
}

func TestStore_AssignedOnIncludesAccepted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	r1 := sampleRequest("r1")
	r2 := sampleRequest("r2")
	r3 := sampleRequest("r3") // stays pending
	require.NoError(t, store.Save(ctx, r1))
	require.NoError(t, store.Save(ctx, r2))
	require.NoError(t, store.Save(ctx, r3))
	require.NoError(t, store.Claim(ctx, "r1", "a1", at))
	require.NoError(t, store.Claim(ctx, "r2", "a2", at))
	require.NoError(t, store.MarkAccepted(ctx, "r2", "a2", at.Add(time.Minute)))

	got, err := store.AssignedOn(ctx, r1.Date)
	require.NoError(t, err)
	require.Len(t, got, 2, "assigned and accepted both hold the assistant's time")
}

// =============================================================================
// LEDGER
// =============================================================================

func TestStore_LedgerGetOrCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.GetOrCreate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, assign.AssistantID("a1"), entry.AssistantID)
	assert.Equal(t, 0, entry.TotalAssignments)
	assert.Nil(t, entry.LastAssignedAt)

	// Idempotent.
	again, err := store.GetOrCreate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.TotalAssignments)
}

func TestStore_LedgerRecordAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	// Upserts whether or not the row exists yet.
	require.NoError(t, store.RecordAssignment(ctx, "a1", at))
	require.NoError(t, store.RecordAssignment(ctx, "a1", at.Add(time.Hour)))
	require.NoError(t, store.RecordAssignment(ctx, "a2", at))

	e1, err := store.GetOrCreate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, e1.TotalAssignments)
	require.NotNil(t, e1.LastAssignedAt)
	assert.True(t, e1.LastAssignedAt.Equal(at.Add(time.Hour)))

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))

	err := store.WithTx(ctx, func(s assign.Store) error {
		if err := s.Claim(ctx, "r1", "a1", at); err != nil {
			return err
		}
		return s.RecordAssignment(ctx, "a1", at)
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusAssigned, got.Status)

	entry, err := store.GetOrCreate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.TotalAssignments)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleRequest("r1")))

	err := store.WithTx(ctx, func(s assign.Store) error {
		if err := s.Claim(ctx, "r1", "a1", at); err != nil {
			return err
		}
		// Simulate the ledger write failing after the claim.
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, assign.StatusPending, got.Status, "claim must not survive the rollback")
	assert.Nil(t, got.AssistantID)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestStore_Directory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	users := []UserRecord{
		{ID: "s1", Name: "Sam", Role: RoleStylist, Active: true, CreatedAt: base},
		{ID: "a2", Name: "Blake", Role: RoleAssistant, Active: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a1", Name: "Alex", Email: "alex@salon.test", Role: RoleAssistant, Active: true, CreatedAt: base.Add(time.Hour)},
		{ID: "a3", Name: "Casey", Role: RoleAssistant, Active: false, CreatedAt: base},
	}
	for _, u := range users {
		require.NoError(t, store.SaveUser(ctx, u))
	}

	// Only active assistants, in creation order.
	holders, err := store.AssistantRoleHolders(ctx)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "a1", holders[0].ID)
	assert.Equal(t, "a2", holders[1].ID)
	assert.Equal(t, "alex@salon.test", holders[0].Email)

	c, err := store.Lookup(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Sam", c.Name)

	c, err = store.Lookup(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, c)

	u, err := store.GetUser(ctx, "a3")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.False(t, u.Active)

	assistants, err := store.ListUsers(ctx, RoleAssistant)
	require.NoError(t, err)
	assert.Len(t, assistants, 3, "listing includes inactive users")
}

// =============================================================================
// CATALOG
// =============================================================================

func TestStore_Catalog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := assign.Service{
		ID:              "svc-color",
		Name:            "Color treatment",
		DurationMinutes: 90,
		Price:           decimal.RequireFromString("120.50"),
	}
	require.NoError(t, store.SaveService(ctx, svc))

	got, err := store.GetService(ctx, "svc-color")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Color treatment", got.Name)
	assert.Equal(t, 90, got.DurationMinutes)
	assert.True(t, got.Price.Equal(svc.Price), "price must round-trip exactly")

	got, err = store.GetService(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	all, err := store.ListServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestStore_Notifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	rows := []notify.Notification{
		{ID: "n1", RecipientID: "a1", EventType: "assistant.assigned", RequestID: "r1",
			Subject: "New assignment", Body: "details", CreatedAt: base},
		{ID: "n2", RecipientID: "a1", EventType: "assistant.timed_out", RequestID: "r1",
			Subject: "Assignment timed out", Body: "details", CreatedAt: base.Add(time.Hour)},
		{ID: "n3", RecipientID: "s1", EventType: "assistant.assigned", RequestID: "r2",
			Subject: "Assistant assigned", Body: "details", CreatedAt: base},
	}
	for _, n := range rows {
		require.NoError(t, store.SaveNotification(ctx, n))
	}

	got, err := store.NotificationsFor(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n2", got[0].ID, "newest first")
	assert.Equal(t, "n1", got[1].ID)

	got, err = store.NotificationsFor(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, got)
}
