/*
handlers.go - HTTP API handlers for the assistant assignment scheduler

PURPOSE:
  Exposes the assignment engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requests:
    POST   /api/requests               Submit help request (auto-assigns)
    GET    /api/requests               List requests (filter by status/stylist)
    GET    /api/requests/{id}          Get request details
    POST   /api/requests/{id}/assign   Re-run assignment for a pending request
    POST   /api/requests/{id}/accept   Assistant accepts
    POST   /api/requests/{id}/decline  Assistant declines (triggers reassignment)
    POST   /api/requests/{id}/cancel   Stylist cancels

  Directory:
    GET    /api/assistants             List assistants
    POST   /api/assistants             Create assistant
    GET    /api/assistants/{id}        Get assistant
    PUT    /api/assistants/{id}        Update assistant
    GET    /api/assistants/{id}/notifications  In-app notifications
    (same shape under /api/stylists)

  Services:
    GET    /api/services               List salon services
    POST   /api/services               Create service
    GET    /api/services/{id}          Get service

  Operations:
    GET    /api/stats                  Workload distribution overview
    POST   /api/sweep                  Run the timeout sweep immediately

ERROR HANDLING:
  Domain errors are mapped to HTTP status:
  - 400: Invalid input (bad dates, missing fields, bad window)
  - 403: Responding assistant is not the assignee
  - 404: Request/user/service not found
  - 409: State conflict (already accepted, concurrent transition,
         deadline not expired)
  - 500: Internal errors
  "No assistants available" is NOT an error: the request parks in
  pending and the response carries no_assistants=true with status 200/201.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - assign/controller.go: Domain logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Controller *assign.Controller
	Sweeper    *TimeoutSweeper
	Logger     *zap.Logger
}

// NewHandler creates a handler around the store and controller.
func NewHandler(store *sqlite.Store, ctrl *assign.Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Controller: ctrl, Logger: logger}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest submits a help request and immediately attempts assignment.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StylistID == "" || req.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "stylist_id and service_id are required", nil)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	start, err := assign.ParseTimeOfDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start time (use HH:MM)", err)
		return
	}
	end, err := assign.ParseTimeOfDay(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end time (use HH:MM)", err)
		return
	}

	stylist, err := h.Store.Lookup(r.Context(), req.StylistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up stylist", err)
		return
	}
	if stylist == nil {
		writeError(w, http.StatusNotFound, "Stylist not found", nil)
		return
	}
	svc, err := h.Store.GetService(r.Context(), assign.ServiceID(req.ServiceID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up service", err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, "Service not found", nil)
		return
	}

	ar := &assign.AssignmentRequest{
		ID:         assign.RequestID(uuid.NewString()),
		StylistID:  assign.StylistID(req.StylistID),
		ClientName: req.ClientName,
		ServiceID:  assign.ServiceID(req.ServiceID),
		Notes:      req.Notes,
		Date:       date,
		Start:      start,
		End:        end,
	}
	if req.ResponseDeadlineMinutes > 0 {
		ar.ResponseDeadline = time.Duration(req.ResponseDeadlineMinutes) * time.Minute
	}

	out, err := h.Controller.Create(r.Context(), ar)
	if err != nil {
		h.writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeDTO(out))
}

// ListRequests returns requests, optionally filtered by status or stylist.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	var filter assign.RequestFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := assign.RequestStatus(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("stylist_id"); s != "" {
		id := assign.StylistID(s)
		filter.StylistID = &id
	}

	reqs, err := h.Store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	dtos := make([]RequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = toRequestDTO(&reqs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := assign.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get request", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Request not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// AssignRequest re-runs assignment for a pending request. Useful after an
// assistant becomes available or a conflicting appointment is cancelled.
func (h *Handler) AssignRequest(w http.ResponseWriter, r *http.Request) {
	id := assign.RequestID(chi.URLParam(r, "id"))

	out, err := h.Controller.Assign(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to assign request", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

// AcceptRequest records an assistant's acceptance.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	id := assign.RequestID(chi.URLParam(r, "id"))
	assistant, ok := h.respondingAssistant(w, r)
	if !ok {
		return
	}

	req, err := h.Controller.Accept(r.Context(), id, assistant)
	if err != nil {
		h.writeDomainError(w, "Failed to accept request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeclineRequest records a decline and reports the reassignment outcome.
func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	id := assign.RequestID(chi.URLParam(r, "id"))
	assistant, ok := h.respondingAssistant(w, r)
	if !ok {
		return
	}

	out, err := h.Controller.Decline(r.Context(), id, assistant)
	if err != nil {
		h.writeDomainError(w, "Failed to decline request", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

// CancelRequest cancels a request on the stylist's behalf.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := assign.RequestID(chi.URLParam(r, "id"))

	req, err := h.Controller.Cancel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) respondingAssistant(w http.ResponseWriter, r *http.Request) (assign.AssistantID, bool) {
	var body RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return "", false
	}
	if body.AssistantID == "" {
		writeError(w, http.StatusBadRequest, "assistant_id is required", nil)
		return "", false
	}
	return assign.AssistantID(body.AssistantID), true
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListUsers returns all users with the given role.
func (h *Handler) ListUsers(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := h.Store.ListUsers(r.Context(), role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list users", err)
			return
		}
		dtos := make([]UserDTO, len(users))
		for i, u := range users {
			dtos[i] = toUserDTO(u)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// CreateUser creates a user with the given role.
func (h *Handler) CreateUser(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required", nil)
			return
		}

		u := sqlite.UserRecord{
			ID:     req.ID,
			Name:   req.Name,
			Email:  req.Email,
			Phone:  req.Phone,
			Role:   role,
			Active: true,
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}

		if err := h.Store.SaveUser(r.Context(), u); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create user", err)
			return
		}

		saved, err := h.Store.GetUser(r.Context(), u.ID)
		if err != nil || saved == nil {
			writeError(w, http.StatusInternalServerError, "Failed to reload user", err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserDTO(*saved))
	}
}

// GetUser returns a single user with the given role.
func (h *Handler) GetUser(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get user", err)
			return
		}
		if u == nil || u.Role != role {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, toUserDTO(*u))
	}
}

// UpdateUser applies a partial update to a user with the given role.
func (h *Handler) UpdateUser(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get user", err)
			return
		}
		if u == nil || u.Role != role {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
		if req.Active != nil {
			u.Active = *req.Active
		}

		if err := h.Store.SaveUser(r.Context(), *u); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update user", err)
			return
		}
		writeJSON(w, http.StatusOK, toUserDTO(*u))
	}
}

// GetNotifications returns a user's in-app notifications, newest first.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ns, err := h.Store.NotificationsFor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get notifications", err)
		return
	}
	dtos := make([]NotificationDTO, len(ns))
	for i, n := range ns {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toUserDTO(u sqlite.UserRecord) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

// ListServices returns the salon's service catalog.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Store.ListServices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list services", err)
		return
	}
	dtos := make([]ServiceDTO, len(services))
	for i, s := range services {
		dtos[i] = toServiceDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateService adds a service to the catalog.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive duration_minutes are required", nil)
		return
	}

	price := decimal.Zero
	if req.Price != "" {
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid price (use a decimal string)", err)
			return
		}
	}

	svc := assign.Service{
		ID:              assign.ServiceID(req.ID),
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           price,
	}
	if svc.ID == "" {
		svc.ID = assign.ServiceID(uuid.NewString())
	}

	if err := h.Store.SaveService(r.Context(), svc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create service", err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceDTO(svc))
}

// GetService returns a single catalog entry.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.Store.GetService(r.Context(), assign.ServiceID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get service", err)
		return
	}
	if svc == nil {
		writeError(w, http.StatusNotFound, "Service not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toServiceDTO(*svc))
}

// =============================================================================
// OPERATIONS HANDLERS
// =============================================================================

// GetStats returns request counts by status and per-assistant workload.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := StatsDTO{Assistants: []AssistantStatsDTO{}}

	counts := map[assign.RequestStatus]*int{
		assign.StatusPending:   &stats.Pending,
		assign.StatusAssigned:  &stats.Assigned,
		assign.StatusAccepted:  &stats.Accepted,
		assign.StatusCancelled: &stats.Cancelled,
	}
	for status, dst := range counts {
		s := status
		reqs, err := h.Store.List(ctx, assign.RequestFilter{Status: &s})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count requests", err)
			return
		}
		*dst = len(reqs)
	}

	entries, err := h.Store.Entries(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load workload ledger", err)
		return
	}
	for _, e := range entries {
		dto := AssistantStatsDTO{
			AssistantID:      string(e.AssistantID),
			TotalAssignments: e.TotalAssignments,
		}
		if e.LastAssignedAt != nil {
			s := e.LastAssignedAt.Format(time.RFC3339)
			dto.LastAssignedAt = &s
		}
		if c, err := h.Store.Lookup(ctx, string(e.AssistantID)); err == nil && c != nil {
			dto.Name = c.Name
		}
		stats.Assistants = append(stats.Assistants, dto)
	}

	writeJSON(w, http.StatusOK, stats)
}

// RunSweep triggers an immediate timeout sweep and reports what it did.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.Sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "Sweeper not configured", nil)
		return
	}
	result := h.Sweeper.Sweep(r.Context())
	writeJSON(w, http.StatusOK, SweepResultDTO{
		Checked:    result.Checked,
		TimedOut:   result.TimedOut,
		Reassigned: result.Reassigned,
		RequestIDs: result.RequestIDs,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case assign.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, assign.ErrNotAssignedToYou):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, assign.ErrAlreadyAccepted),
		errors.Is(err, assign.ErrRequestStateChanged),
		errors.Is(err, assign.ErrResponseNotExpired):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, assign.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error("internal error", zap.String("message", message), zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
