package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/booking/internal/booking"
)

type BookAppointmentRequest struct {
	SlotID     string `json:"slot_id"`
	PatientID  string `json:"patient_id"`
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	SlotID       uuid.UUID `json:"slot_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	DisplayState string    `json:"display_state"`
	Reason       string    `json:"reason,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName  string  `json:"patient_name"`
	ProviderName string  `json:"provider_name"`
	Specialty    *string `json:"specialty,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		SlotID:       a.SlotID,
		ProviderID:   a.ProviderID,
		PatientID:    a.PatientID,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       string(a.Status),
		DisplayState: string(booking.Display(a.Status)),
		Reason:       a.Reason,
		Notes:        a.Notes,
	}
}

func toDetailResponse(d booking.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		PatientName:         d.PatientName,
		ProviderName:        d.ProviderName,
		Specialty:           d.Specialty,
	}
}
