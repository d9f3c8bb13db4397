package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/notify"
)

type slotEffect int

const (
	effectNone slotEffect = iota
	effectRelease
	effectReserve
)

// transitions is the full lifecycle table. Absent entries are not
// permitted, which also makes the terminal states (attended, rejected)
// idempotence-safe: a second transition attempt fails with Conflict.
// cancelled→confirmed and no_show→confirmed are administrative
// reactivations and require the originally held slot to still be
// available.
var transitions = map[AppointmentStatus]map[AppointmentStatus]slotEffect{
	StatusPending: {
		StatusConfirmed: effectNone,
		StatusCancelled: effectRelease,
		StatusRejected:  effectRelease,
	},
	StatusConfirmed: {
		StatusAttended:  effectNone,
		StatusCancelled: effectRelease,
		StatusNoShow:    effectNone,
	},
	StatusCancelled: {
		StatusConfirmed: effectReserve,
	},
	StatusNoShow: {
		StatusConfirmed: effectReserve,
	},
}

func allowed(from, to AppointmentStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionEngine validates and applies lifecycle changes that do not
// move an appointment between slots. Slot side effects (release on
// cancel/reject, re-reserve on reactivation) are applied in the same
// transaction as the status write.
type TransitionEngine struct {
	store      Store
	dir        Directory
	dispatcher notify.Dispatcher
	log        *zap.Logger
}

func NewTransitionEngine(store Store, dir Directory, dispatcher notify.Dispatcher, log *zap.Logger) *TransitionEngine {
	return &TransitionEngine{
		store:      store,
		dir:        dir,
		dispatcher: dispatcher,
		log:        log,
	}
}

// UpdateStatus applies target to the appointment if the transition
// table permits it from the current status. Patients may only cancel
// their own appointments; every other transition is administrative.
func (e *TransitionEngine) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, actor Actor, target AppointmentStatus, notes *string) (*Appointment, error) {
	var (
		updated *Appointment
		from    AppointmentStatus
	)

	err := e.store.InTx(ctx, func(tx Store) error {
		appt, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}

		if !actor.Admin {
			if target != StatusCancelled || !actor.CanManage(appt) {
				return ErrNotPermitted
			}
		}

		effect, ok := transitions[appt.Status][target]
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, target)
		}

		next, err := tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, target, notes)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("%w: appointment changed concurrently", ErrConflict)
			}
			return err
		}

		// Slot effects come after the guarded status write so they act
		// on the slot the row holds now, not the one read above.
		switch effect {
		case effectReserve:
			// Reactivation: someone else may have taken the slot since.
			if err := tx.ReserveSlot(ctx, next.SlotID); err != nil {
				return err
			}
		case effectRelease:
			if err := tx.ReleaseSlot(ctx, next.SlotID); err != nil {
				return err
			}
		}

		from = appt.Status
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("appointment status updated",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actor.ID.String()))

	e.notify(ctx, updated, from)

	return updated, nil
}

// notify keys the outbound event on the specific transition taken.
func (e *TransitionEngine) notify(ctx context.Context, appt *Appointment, from AppointmentStatus) {
	var send func(context.Context, notify.Event)
	switch appt.Status {
	case StatusConfirmed:
		if from != StatusConfirmed {
			send = e.dispatcher.AppointmentConfirmed
		}
	case StatusCancelled:
		send = e.dispatcher.AppointmentCancelled
	case StatusRejected:
		send = e.dispatcher.AppointmentRejected
	}
	if send == nil {
		return
	}

	patient, err := e.dir.Patient(ctx, appt.PatientID)
	if err != nil {
		e.log.Warn("notification skipped, patient lookup failed",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		return
	}
	provider, err := e.dir.Provider(ctx, appt.ProviderID)
	if err != nil {
		e.log.Warn("notification skipped, provider lookup failed",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		return
	}

	send(ctx, buildEvent(appt, patient, provider))
}
