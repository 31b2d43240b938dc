/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines all JSON structures used in API communication. Keeps wire
  format separate from domain types so the scheduler internals can
  evolve without breaking API clients.

CONVENTIONS:
  - Dates: "2006-01-02" strings
  - Times of day: "15:04" strings (salon-local)
  - Timestamps: RFC3339 strings
  - Money: decimal strings ("35.50")

SEE ALSO:
  - handlers.go: Where these DTOs are used
  - assign/types.go: Domain types these map to
*/
package api

import (
	"time"

	"github.com/salonhub/assist-engine/assign"
	"github.com/salonhub/assist-engine/notify"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================

// CreateRequestRequest is the payload for submitting a help request.
type CreateRequestRequest struct {
	StylistID  string `json:"stylist_id"`
	ClientName string `json:"client_name"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`  // "2006-01-02"
	Start      string `json:"start"` // "15:04"
	End        string `json:"end"`   // "15:04"
	Notes      string `json:"notes,omitempty"`

	// ResponseDeadlineMinutes overrides the default response window.
	// Zero means use the server default.
	ResponseDeadlineMinutes int `json:"response_deadline_minutes,omitempty"`
}

// RespondRequest identifies the assistant answering an assignment.
type RespondRequest struct {
	AssistantID string `json:"assistant_id"`
}

// CreateUserRequest is the payload for creating a stylist or assistant.
type CreateUserRequest struct {
	ID    string `json:"id,omitempty"` // generated when empty
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// UpdateUserRequest is the payload for updating a user.
type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// CreateServiceRequest is the payload for creating a salon service.
type CreateServiceRequest struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price,omitempty"` // decimal string
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// RequestDTO is the wire form of an assignment request.
type RequestDTO struct {
	ID          string   `json:"id"`
	StylistID   string   `json:"stylist_id"`
	ClientName  string   `json:"client_name"`
	ServiceID   string   `json:"service_id"`
	Date        string   `json:"date"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Notes       string   `json:"notes,omitempty"`
	Status      string   `json:"status"`
	AssistantID *string  `json:"assistant_id,omitempty"`
	AssignedAt  *string  `json:"assigned_at,omitempty"`
	AcceptedAt  *string  `json:"accepted_at,omitempty"`
	RespondBy   *string  `json:"respond_by,omitempty"`
	DeclinedBy  []string `json:"declined_by,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// OutcomeDTO is returned by operations that may (re)assign a request.
type OutcomeDTO struct {
	Request   RequestDTO  `json:"request"`
	Assistant *ContactDTO `json:"assistant,omitempty"`

	// NoAssistants signals that the request is parked pending because
	// nobody was eligible. The request itself is still valid.
	NoAssistants bool `json:"no_assistants,omitempty"`
}

// ContactDTO is the wire form of a user's contact card.
type ContactDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// UserDTO is the wire form of a directory user.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// ServiceDTO is the wire form of a salon service.
type ServiceDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
}

// NotificationDTO is the wire form of an in-app notification.
type NotificationDTO struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	EventType   string `json:"event_type"`
	RequestID   string `json:"request_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	CreatedAt   string `json:"created_at"`
}

// AssistantStatsDTO reports one assistant's share of the workload.
type AssistantStatsDTO struct {
	AssistantID      string  `json:"assistant_id"`
	Name             string  `json:"name"`
	TotalAssignments int     `json:"total_assignments"`
	LastAssignedAt   *string `json:"last_assigned_at,omitempty"`
}

// StatsDTO is the workload overview returned by GET /api/stats.
type StatsDTO struct {
	Pending    int                 `json:"pending"`
	Assigned   int                 `json:"assigned"`
	Accepted   int                 `json:"accepted"`
	Cancelled  int                 `json:"cancelled"`
	Assistants []AssistantStatsDTO `json:"assistants"`
}

// SweepResultDTO summarizes a manual timeout sweep.
type SweepResultDTO struct {
	Checked    int      `json:"checked"`
	TimedOut   int      `json:"timed_out"`
	Reassigned int      `json:"reassigned"`
	RequestIDs []string `json:"request_ids,omitempty"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRequestDTO(r *assign.AssignmentRequest) RequestDTO {
	dto := RequestDTO{
		ID:         string(r.ID),
		StylistID:  string(r.StylistID),
		ClientName: r.ClientName,
		ServiceID:  string(r.ServiceID),
		Date:       r.Date.Format("2006-01-02"),
		Start:      r.Start.String(),
		End:        r.End.String(),
		Notes:      r.Notes,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
	if r.AssistantID != nil {
		id := string(*r.AssistantID)
		dto.AssistantID = &id
	}
	if r.AssignedAt != nil {
		s := r.AssignedAt.Format(time.RFC3339)
		dto.AssignedAt = &s
		if r.AcceptedAt == nil {
			d := r.AssignedAt.Add(r.ResponseDeadline).Format(time.RFC3339)
			dto.RespondBy = &d
		}
	}
	if r.AcceptedAt != nil {
		s := r.AcceptedAt.Format(time.RFC3339)
		dto.AcceptedAt = &s
	}
	for _, a := range r.DeclinedBy {
		dto.DeclinedBy = append(dto.DeclinedBy, string(a))
	}
	return dto
}

func toOutcomeDTO(out *assign.Outcome) OutcomeDTO {
	dto := OutcomeDTO{
		Request:      toRequestDTO(out.Request),
		NoAssistants: out.NoAssistants,
	}
	if out.Assistant != nil {
		c := toContactDTO(*out.Assistant)
		dto.Assistant = &c
	}
	return dto
}

func toContactDTO(c assign.Contact) ContactDTO {
	return ContactDTO{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone}
}

func toServiceDTO(s assign.Service) ServiceDTO {
	return ServiceDTO{
		ID:              string(s.ID),
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price.String(),
	}
}

func toNotificationDTO(n notify.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		EventType:   n.EventType,
		RequestID:   n.RequestID,
		Subject:     n.Subject,
		Body:        n.Body,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	}
}
