/*
Package notify delivers assignment events to stylists and assistants.

PURPOSE:
  Implements the assign.Dispatcher boundary: each committed state
  transition becomes an in-app notification row plus (when an email
  address is on file) an email. Delivery is fire-and-forget relative to
  the scheduler's state machine - a failure here is logged by the caller
  and never rolls back a transition.

MESSAGE PHRASING:
  The event type drives the stylist-facing copy: a timeout reads
  "did not respond in time" while an explicit refusal reads "declined".

SEE ALSO:
  - assign/events.go: Event contract
  - templates.go: Email body construction
*/
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salonhub/assist-engine/assign"
)

// =============================================================================
// TYPES
// =============================================================================

// Notification is an in-app notification row.
type Notification struct {
	ID          string
	RecipientID string
	EventType   string
	RequestID   string
	Subject     string
	Body        string
	CreatedAt   time.Time
}

// NotificationStore persists in-app notification rows. Append-only.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n Notification) error
}

// EmailSender delivers a built email. Implementations wrap SMTP or a
// provider API; LogSender is the default for local dev.
type EmailSender interface {
	Send(ctx context.Context, e Email) error
}

// LogSender logs emails instead of sending them.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, e Email) error {
	s.Logger.Info("email (not sent, log sender)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher fans an assignment event out to its recipients.
type Dispatcher struct {
	Store  NotificationStore
	Sender EmailSender
	Logger *zap.Logger
}

// New creates a dispatcher. Sender may be nil to disable email delivery.
func New(store NotificationStore, sender EmailSender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{Store: store, Sender: sender, Logger: logger}
}

// Dispatch delivers the event to every concerned recipient. All deliveries
// are attempted; the first error is returned after the rest complete.
func (d *Dispatcher) Dispatch(ctx context.Context, ev assign.Event) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	details := Details(ev)

	switch ev.Type {
	case assign.EventAssigned:
		if ev.NewAssistant != nil {
			record(d.deliver(ctx, ev, *ev.NewAssistant,
				"New assignment",
				fmt.Sprintf("You have been assigned to help %s.\n\n%s", ev.Stylist.Name, details)))
		}
		record(d.deliver(ctx, ev, ev.Stylist,
			"Assistant assigned",
			fmt.Sprintf("%s has been assigned to your request.\n\n%s", assistantName(ev.NewAssistant), details)))

	case assign.EventDeclined:
		record(d.deliver(ctx, ev, ev.Stylist,
			"Assignment declined",
			stylistReassignmentBody(ev, fmt.Sprintf("%s declined your request.", assistantName(ev.OldAssistant)), details)))

	case assign.EventTimedOut:
		record(d.deliver(ctx, ev, ev.Stylist,
			"Assignment timed out",
			stylistReassignmentBody(ev, fmt.Sprintf("%s did not respond in time.", assistantName(ev.OldAssistant)), details)))

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	return firstErr
}

func stylistReassignmentBody(ev assign.Event, lead, details string) string {
	if ev.NewAssistant != nil {
		return fmt.Sprintf("%s Your request has been reassigned to %s.\n\n%s", lead, ev.NewAssistant.Name, details)
	}
	return fmt.Sprintf("%s We are still looking for an available assistant.\n\n%s", lead, details)
}

func assistantName(c *assign.Contact) string {
	if c == nil {
		return "An assistant"
	}
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// deliver writes the in-app row and, when possible, sends an email.
func (d *Dispatcher) deliver(ctx context.Context, ev assign.Event, to assign.Contact, subject, body string) error {
	var errs []error

	if d.Store != nil {
		n := Notification{
			ID:          uuid.NewString(),
			RecipientID: to.ID,
			EventType:   string(ev.Type),
			RequestID:   string(ev.Request.ID),
			Subject:     subject,
			Body:        body,
			CreatedAt:   time.Now().UTC(),
		}
		if err := d.Store.SaveNotification(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("in-app notification for %s: %w", to.ID, err))
		}
	}

	if d.Sender != nil && to.Email != "" {
		email := BuildEventEmail(EventEmailData{
			To:       to.Email,
			Subject:  subject,
			Greeting: to.Name,
			Message:  body,
		})
		if err := d.Sender.Send(ctx, email); err != nil {
			errs = append(errs, fmt.Errorf("email for %s: %w", to.ID, err))
		}
	}

	return errors.Join(errs...)
}
