package booking

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpirySweeper rejects pending appointments that were never confirmed
// within the configured TTL, releasing their slots. It runs from the
// expiry worker on an interval; each appointment goes through the
// transition engine so the usual invariants apply.
type ExpirySweeper struct {
	store  Store
	engine *TransitionEngine
	ttl    time.Duration
	log    *zap.Logger
}

// systemActor performs automated administrative transitions.
var systemActor = Actor{Admin: true}

func NewExpirySweeper(store Store, engine *TransitionEngine, ttl time.Duration, log *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		store:  store,
		engine: engine,
		ttl:    ttl,
		log:    log,
	}
}

// Sweep rejects every pending appointment older than the TTL. One
// failing appointment does not stop the rest of the batch.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.ttl)

	stale, err := s.store.FindStalePending(ctx, cutoff)
	if err != nil {
		return err
	}

	notes := "auto-rejected: not confirmed in time"
	rejected := 0
	for _, appt := range stale {
		if _, err := s.engine.UpdateStatus(ctx, appt.ID, systemActor, StatusRejected, &notes); err != nil {
			s.log.Warn("expiry sweep skipped appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}
		rejected++
	}

	if len(stale) > 0 {
		s.log.Info("expiry sweep complete",
			zap.Int("rejected", rejected),
			zap.Int("skipped", len(stale)-rejected))
	}
	return nil
}
