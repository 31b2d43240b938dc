/*
handlers_test.go - HTTP-level tests for the API handlers

Tests for:
- The request lifecycle over HTTP (create, accept, decline, cancel)
- Domain error to status code mapping
- Directory, catalog, stats, and sweep endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/notify"
	"github.com/salonhub/assist-engine/store/sqlite"
)

type apiEnv struct {
	store  *sqlite.Store
	ctrl   *assign.Controller
	router http.Handler
	now    time.Time
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &apiEnv{
		store: store,
		now:   time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC),
	}
	env.ctrl = assign.NewController(store, store, store, nil, nil)
	env.ctrl.Now = func() time.Time { return env.now }

	h := NewHandler(store, env.ctrl, nil)
	sweeper := NewTimeoutSweeper(store, env.ctrl, nil)
	sweeper.Now = env.ctrl.Now
	h.Sweeper = sweeper
	env.router = NewRouter(h)
	return env
}

// seed creates one stylist, one service, and the given assistants.
func (e *apiEnv) seed(t *testing.T, assistants ...string) {
	t.Helper()
	ctx := context.Background()

	if err := e.store.SaveUser(ctx, sqlite.UserRecord{
		ID: "s1", Name: "Sam", Email: "sam@salon.test", Role: sqlite.RoleStylist, Active: true,
	}); err != nil {
		t.Fatalf("Failed to seed stylist: %v", err)
	}
	if err := e.store.SaveService(ctx, assign.Service{
		ID: "svc-1", Name: "Blowout", DurationMinutes: 45,
	}); err != nil {
		t.Fatalf("Failed to seed service: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range assistants {
		err := e.store.SaveUser(ctx, sqlite.UserRecord{
			ID: id, Name: "Assistant " + id, Role: sqlite.RoleAssistant, Active: true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Failed to seed assistant %s: %v", id, err)
		}
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func createPayload() CreateRequestRequest {
	return CreateRequestRequest{
		StylistID:  "s1",
		ClientName: "Dana",
		ServiceID:  "svc-1",
		Date:       "2026-03-14",
		Start:      "10:00",
		End:        "11:00",
	}
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestAPI_CreateRequestAssigns(t *testing.T) {
	// GIVEN: A stylist, a service, and one available assistant
	env := newAPIEnv(t)
	env.seed(t, "a1")

	// WHEN: A help request is submitted
	rec := env.do(t, "POST", "/api/requests", createPayload())

	// THEN: It is created and immediately assigned
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	if out.NoAssistants {
		t.Error("expected an assignment, got no_assistants")
	}
	if out.Assistant == nil || out.Assistant.ID != "a1" {
		t.Errorf("expected assistant a1, got %+v", out.Assistant)
	}
	if out.Request.Status != string(assign.StatusAssigned) {
		t.Errorf("expected assigned, got %s", out.Request.Status)
	}
	if out.Request.RespondBy == nil {
		t.Error("expected a respond_by deadline on an unaccepted assignment")
	}
}

func TestAPI_CreateRequestNoAssistants(t *testing.T) {
	// GIVEN: No assistants on the roster
	env := newAPIEnv(t)
	env.seed(t)

	// WHEN: A help request is submitted
	rec := env.do(t, "POST", "/api/requests", createPayload())

	// THEN: The request parks in pending, flagged but not an error
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	if !out.NoAssistants {
		t.Error("expected no_assistants flag")
	}
	if out.Request.Status != string(assign.StatusPending) {
		t.Errorf("expected pending, got %s", out.Request.Status)
	}
}

func TestAPI_CreateRequestValidation(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "a1")

	cases := []struct {
		name   string
		mutate func(*CreateRequestRequest)
		want   int
	}{
		{"bad date", func(r *CreateRequestRequest) { r.Date = "14/03/2026" }, http.StatusBadRequest},
		{"bad start", func(r *CreateRequestRequest) { r.Start = "ten" }, http.StatusBadRequest},
		{"end before start", func(r *CreateRequestRequest) { r.Start = "11:00"; r.End = "10:00" }, http.StatusBadRequest},
		{"missing stylist", func(r *CreateRequestRequest) { r.StylistID = "" }, http.StatusBadRequest},
		{"unknown stylist", func(r *CreateRequestRequest) { r.StylistID = "ghost" }, http.StatusNotFound},
		{"unknown service", func(r *CreateRequestRequest) { r.ServiceID = "ghost" }, http.StatusNotFound},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := createPayload()
			c.mutate(&payload)
			rec := env.do(t, "POST", "/api/requests", payload)
			if rec.Code != c.want {
				t.Errorf("expected %d, got %d: %s", c.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAPI_AcceptFlow(t *testing.T) {
	// GIVEN: An assigned request
	env := newAPIEnv(t)
	env.seed(t, "a1", "a2")

	rec := env.do(t, "POST", "/api/requests", createPayload())
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	id := out.Request.ID
	assignee := out.Assistant.ID

	// WHEN: The wrong assistant tries to accept
	var other string
	if assignee == "a1" {
		other = "a2"
	} else {
		other = "a1"
	}
	rec = env.do(t, "POST", "/api/requests/"+id+"/accept", RespondRequest{AssistantID: other})

	// THEN: 403, and the request is untouched
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong assistant, got %d", rec.Code)
	}

	// WHEN: The assignee accepts
	rec = env.do(t, "POST", "/api/requests/"+id+"/accept", RespondRequest{AssistantID: assignee})

	// THEN: The request is accepted
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dto RequestDTO
	decodeInto(t, rec, &dto)
	if dto.Status != string(assign.StatusAccepted) {
		t.Errorf("expected accepted, got %s", dto.Status)
	}
	if dto.AcceptedAt == nil {
		t.Error("expected accepted_at to be set")
	}
}

func TestAPI_DeclineReassigns(t *testing.T) {
	// GIVEN: An assigned request with a second assistant available
	env := newAPIEnv(t)
	env.seed(t, "a1", "a2")

	rec := env.do(t, "POST", "/api/requests", createPayload())
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	id := out.Request.ID
	first := out.Assistant.ID

	// WHEN: The assignee declines
	rec = env.do(t, "POST", "/api/requests/"+id+"/decline", RespondRequest{AssistantID: first})

	// THEN: The request moves to the other assistant
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeInto(t, rec, &out)
	if out.Assistant == nil || out.Assistant.ID == first {
		t.Errorf("expected a different assistant, got %+v", out.Assistant)
	}
	found := false
	for _, d := range out.Request.DeclinedBy {
		if d == first {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in declined_by, got %v", first, out.Request.DeclinedBy)
	}

	// WHEN: The second assistant declines too
	rec = env.do(t, "POST", "/api/requests/"+id+"/decline", RespondRequest{AssistantID: out.Assistant.ID})

	// THEN: The roster is exhausted and the request parks
	decodeInto(t, rec, &out)
	if !out.NoAssistants {
		t.Error("expected no_assistants after both declined")
	}
}

func TestAPI_DeclineAfterAcceptConflicts(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "a1")

	rec := env.do(t, "POST", "/api/requests", createPayload())
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	id := out.Request.ID

	env.do(t, "POST", "/api/requests/"+id+"/accept", RespondRequest{AssistantID: "a1"})
	rec = env.do(t, "POST", "/api/requests/"+id+"/decline", RespondRequest{AssistantID: "a1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 declining an accepted request, got %d", rec.Code)
	}
}

func TestAPI_CancelRequest(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "a1")

	rec := env.do(t, "POST", "/api/requests", createPayload())
	var out OutcomeDTO
	decodeInto(t, rec, &out)
	id := out.Request.ID

	rec = env.do(t, "POST", "/api/requests/"+id+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dto RequestDTO
	decodeInto(t, rec, &dto)
	if dto.Status != string(assign.StatusCancelled) {
		t.Errorf("expected cancelled, got %s", dto.Status)
	}

	rec = env.do(t, "POST", "/api/requests/"+id+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 cancelling twice, got %d", rec.Code)
	}
}

func TestAPI_GetRequestNotFound(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, "GET", "/api/requests/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// DIRECTORY & CATALOG
// =============================================================================

func TestAPI_AssistantCRUD(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "POST", "/api/assistants", CreateUserRequest{Name: "Alex", Email: "alex@salon.test"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created UserDTO
	decodeInto(t, rec, &created)
	if created.ID == "" || created.Role != sqlite.RoleAssistant || !created.Active {
		t.Errorf("unexpected created user: %+v", created)
	}

	rec = env.do(t, "GET", "/api/assistants", nil)
	var list []UserDTO
	decodeInto(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 assistant, got %d", len(list))
	}

	// Deactivate and confirm the matcher's roster shrinks.
	inactive := false
	rec = env.do(t, "PUT", "/api/assistants/"+created.ID, UpdateUserRequest{Active: &inactive})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	holders, err := env.store.AssistantRoleHolders(context.Background())
	if err != nil {
		t.Fatalf("Failed to list role holders: %v", err)
	}
	if len(holders) != 0 {
		t.Errorf("deactivated assistant still on the roster: %v", holders)
	}

	// An assistant id is invisible under the stylist prefix.
	rec = env.do(t, "GET", "/api/stylists/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for role mismatch, got %d", rec.Code)
	}
}

func TestAPI_ServiceEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "POST", "/api/services", CreateServiceRequest{
		Name: "Color treatment", DurationMinutes: 90, Price: "120.50",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var svc ServiceDTO
	decodeInto(t, rec, &svc)
	if svc.Price != "120.5" && svc.Price != "120.50" {
		t.Errorf("unexpected price %q", svc.Price)
	}

	rec = env.do(t, "POST", "/api/services", CreateServiceRequest{
		Name: "Broken", DurationMinutes: 30, Price: "lots",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid price, got %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/services/"+svc.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// =============================================================================
// STATS & SWEEP
// =============================================================================

func TestAPI_Stats(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "a1")
	env.do(t, "POST", "/api/requests", createPayload())

	rec := env.do(t, "GET", "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats StatsDTO
	decodeInto(t, rec, &stats)
	if stats.Assigned != 1 {
		t.Errorf("expected 1 assigned request, got %+v", stats)
	}
	if len(stats.Assistants) != 1 || stats.Assistants[0].TotalAssignments != 1 {
		t.Errorf("expected a1 with one assignment, got %+v", stats.Assistants)
	}
	if stats.Assistants[0].Name == "" {
		t.Error("expected the assistant's name to be resolved")
	}
}

func TestAPI_SweepEndpoint(t *testing.T) {
	// GIVEN: An overdue assignment
	env := newAPIEnv(t)
	env.seed(t, "a1", "a2")
	env.do(t, "POST", "/api/requests", createPayload())
	env.now = env.now.Add(assign.DefaultResponseDeadline + time.Minute)

	// WHEN: A manual sweep is requested
	rec := env.do(t, "POST", "/api/sweep", nil)

	// THEN: The sweep reports the reassignment
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result SweepResultDTO
	decodeInto(t, rec, &result)
	if result.TimedOut != 1 || result.Reassigned != 1 {
		t.Errorf("unexpected sweep result: %+v", result)
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestAPI_NotificationsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.seed(t, "a1")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := env.store.SaveNotification(ctx, sampleNotification(fmt.Sprintf("n%d", i), "a1"))
		if err != nil {
			t.Fatalf("Failed to save notification: %v", err)
		}
	}

	rec := env.do(t, "GET", "/api/assistants/a1/notifications", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list []NotificationDTO
	decodeInto(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(list))
	}
}

func sampleNotification(id, recipient string) notify.Notification {
	return notify.Notification{
		ID:          id,
		RecipientID: recipient,
		EventType:   string(assign.EventAssigned),
		RequestID:   "r1",
		Subject:     "New assignment",
		Body:        "details",
		CreatedAt:   time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
	}
}
