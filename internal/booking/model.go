package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
	SlotBlocked   SlotStatus = "blocked"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusAttended  AppointmentStatus = "attended"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusRejected  AppointmentStatus = "rejected"
	StatusNoShow    AppointmentStatus = "no_show"
)

// ParseAppointmentStatus maps a wire string to a known status.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusPending, StatusConfirmed, StatusAttended, StatusCancelled, StatusRejected, StatusNoShow:
		return AppointmentStatus(s), nil
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether no further transitions leave the status.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusAttended || s == StatusRejected
}

// Active reports whether the appointment still holds its slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled && s != StatusRejected
}

// Slot is a provider-specific bookable time window.
type Slot struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     SlotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Appointment is a patient's claim on a slot. Start/end are copied from
// the slot at booking time and refreshed on reschedule so history and
// notifications stay accurate even though the slot record is mutable.
type Appointment struct {
	ID         uuid.UUID
	SlotID     uuid.UUID
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	Reason     string
	Notes      *string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Actor identifies who is performing a booking operation. Admin grants
// the administrative transitions (confirm, reject, attended, no-show,
// reactivation) and rights over any appointment.
type Actor struct {
	ID    uuid.UUID
	Admin bool
}

// CanManage reports whether the actor may mutate the given appointment.
func (a Actor) CanManage(appt *Appointment) bool {
	return a.Admin || a.ID == appt.PatientID
}

type DisplayState string

const (
	DisplayBooked    DisplayState = "booked"
	DisplayAttended  DisplayState = "attended"
	DisplayCancelled DisplayState = "cancelled"
	DisplayNoShow    DisplayState = "no_show"
)

// Display collapses the canonical status into the coarser calendar
// label. Pure projection; never persisted.
func Display(s AppointmentStatus) DisplayState {
	switch s {
	case StatusPending, StatusConfirmed:
		return DisplayBooked
	case StatusAttended:
		return DisplayAttended
	case StatusNoShow:
		return DisplayNoShow
	default:
		return DisplayCancelled
	}
}

// AppointmentDetail is the admin read projection joining directory names.
type AppointmentDetail struct {
	Appointment
	PatientName  string
	ProviderName string
	Specialty    *string
}

// Filter narrows the administrative appointment listing.
type Filter struct {
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	Status     *AppointmentStatus
	From       *time.Time
	To         *time.Time
	Query      string
	Limit      int
	Offset     int
}
