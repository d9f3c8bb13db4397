package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRecorder persists booking events for audit, outside the booking
// transaction. A lost event row is acceptable; a lost booking is not.
type EventRecorder struct {
	pool *pgxpool.Pool
}

func NewEventRecorder(pool *pgxpool.Pool) *EventRecorder {
	return &EventRecorder{pool: pool}
}

func (r *EventRecorder) Record(ctx context.Context, eventType string, ev Event) error {
	payload, err := json.Marshal(map[string]any{
		"patient":  ev.PatientName,
		"provider": ev.ProviderName,
		"start":    ev.Start,
		"end":      ev.End,
		"reason":   ev.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, eventType, ev.AppointmentID, payload)
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}
