// Package notify delivers booking-event notifications. Delivery is
// best-effort: one attempt per event, failures are logged and never
// surfaced to the booking caller.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventCreated     = "APPOINTMENT_CREATED"
	EventConfirmed   = "APPOINTMENT_CONFIRMED"
	EventCancelled   = "APPOINTMENT_CANCELLED"
	EventRescheduled = "APPOINTMENT_RESCHEDULED"
	EventRejected    = "APPOINTMENT_REJECTED"
)

// Event carries everything a booking email needs; the appointment keeps
// its own copy of the times, so these stay accurate even after the slot
// record changes.
type Event struct {
	AppointmentID  uuid.UUID
	PatientName    string
	PatientContact string
	ProviderName   string
	Specialty      string
	Start          time.Time
	End            time.Time
	Reason         string

	// OldStart/OldEnd are set on reschedule events only.
	OldStart time.Time
	OldEnd   time.Time
}

// Dispatcher is consumed by the booking coordinator and the transition
// engine. Implementations must return promptly and must not propagate
// delivery failures.
type Dispatcher interface {
	AppointmentCreated(ctx context.Context, ev Event)
	AppointmentConfirmed(ctx context.Context, ev Event)
	AppointmentCancelled(ctx context.Context, ev Event)
	AppointmentRescheduled(ctx context.Context, ev Event)
	AppointmentRejected(ctx context.Context, ev Event)
}

// Sender is the outbound delivery boundary (SMTP, SES, ...). Exactly
// one attempt is made per event.
type Sender interface {
	Send(ctx context.Context, eventType string, ev Event) error
}
