package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/booking/internal/notify"
	redisclient "github.com/clinicore/booking/internal/redis"
)

// Coordinator is the only component allowed to mutate a slot and an
// appointment within one unit of work. Every booking-affecting
// operation runs inside a single database transaction; slot occupancy
// changes go through conditional updates so that concurrent attempts
// against the same slot resolve to exactly one winner.
type Coordinator struct {
	store      Store
	dir        Directory
	locker     redisclient.Locker
	dispatcher notify.Dispatcher
	log        *zap.Logger
}

func NewCoordinator(store Store, dir Directory, locker redisclient.Locker, dispatcher notify.Dispatcher, log *zap.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		dir:        dir,
		locker:     locker,
		dispatcher: dispatcher,
		log:        log,
	}
}

type BookRequest struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	SlotID     uuid.UUID
	Reason     string
	Actor      Actor
}

// Book reserves a slot for a patient and creates a pending appointment
// against it. The slot reservation is a compare-and-swap inside the
// transaction; losing the race surfaces as ErrSlotUnavailable.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	patient, err := c.dir.Patient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	provider, err := c.dir.Provider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if !patient.Active || !provider.Active {
		return nil, ErrPartyInactive
	}
	if !req.Actor.Admin && req.Actor.ID != req.PatientID {
		return nil, ErrNotPermitted
	}

	var created *Appointment

	err = c.locker.WithSlotLock(ctx, req.SlotID, func(lockCtx context.Context) error {
		return c.store.InTx(lockCtx, func(tx Store) error {
			slot, err := tx.GetSlot(lockCtx, req.SlotID)
			if err != nil {
				return err
			}
			if slot.ProviderID != req.ProviderID {
				return ErrProviderMismatch
			}

			if err := tx.ReserveSlot(lockCtx, req.SlotID); err != nil {
				return err
			}

			appt, err := tx.CreateAppointment(lockCtx, &Appointment{
				SlotID:     slot.ID,
				ProviderID: slot.ProviderID,
				PatientID:  req.PatientID,
				StartTime:  slot.StartTime,
				EndTime:    slot.EndTime,
				Status:     StatusPending,
				Reason:     req.Reason,
				CreatedBy:  req.Actor.ID,
			})
			if err != nil {
				return err
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotUnavailable) {
			if holder, lookupErr := c.store.ActiveAppointmentForSlot(ctx, req.SlotID); lookupErr == nil {
				c.log.Info("booking conflict, slot already held",
					zap.String("slot_id", req.SlotID.String()),
					zap.String("held_by_appointment", holder.ID.String()))
			}
		}
		return nil, err
	}

	c.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("slot_id", created.SlotID.String()),
		zap.String("patient_id", created.PatientID.String()))

	c.dispatcher.AppointmentCreated(ctx, buildEvent(created, patient, provider))

	return created, nil
}

// Cancel moves an appointment to cancelled and frees its slot. Patients
// may cancel their own appointments; anything else needs administrative
// capability.
func (c *Coordinator) Cancel(ctx context.Context, appointmentID uuid.UUID, actor Actor) error {
	var cancelled *Appointment

	err := c.store.InTx(ctx, func(tx Store) error {
		appt, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !actor.CanManage(appt) {
			return ErrNotPermitted
		}
		if appt.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if !allowed(appt.Status, StatusCancelled) {
			return ErrInvalidTransition
		}

		updated, err := tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled, nil)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Row moved out from under us between read and write.
				return fmt.Errorf("%w: appointment changed concurrently", ErrConflict)
			}
			return err
		}

		// Release the slot the row held when the guarded update ran; a
		// reschedule may have moved the appointment since the read above.
		if err := tx.ReleaseSlot(ctx, updated.SlotID); err != nil {
			return err
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		return err
	}

	c.log.Info("appointment cancelled",
		zap.String("appointment_id", cancelled.ID.String()),
		zap.String("slot_id", cancelled.SlotID.String()),
		zap.String("actor_id", actor.ID.String()))

	c.notifyFor(ctx, cancelled, func(ev notify.Event) {
		c.dispatcher.AppointmentCancelled(ctx, ev)
	})

	return nil
}

// Reschedule atomically moves an appointment to a new slot of the same
// provider. The new slot is reserved before the old one is released;
// either both state changes commit or neither does.
func (c *Coordinator) Reschedule(ctx context.Context, appointmentID uuid.UUID, actor Actor, newSlotID uuid.UUID) (*Appointment, error) {
	var (
		moved    *Appointment
		oldStart Appointment
	)

	err := c.locker.WithSlotLock(ctx, newSlotID, func(lockCtx context.Context) error {
		return c.store.InTx(lockCtx, func(tx Store) error {
			appt, err := tx.GetAppointment(lockCtx, appointmentID)
			if err != nil {
				return err
			}
			if !actor.CanManage(appt) {
				return ErrNotPermitted
			}
			if appt.Status == StatusCancelled || appt.Status == StatusAttended {
				return ErrAppointmentClosed
			}

			newSlot, err := tx.GetSlot(lockCtx, newSlotID)
			if err != nil {
				return err
			}
			// Reschedule never changes provider.
			if newSlot.ProviderID != appt.ProviderID {
				return ErrProviderMismatch
			}

			if err := tx.ReserveSlot(lockCtx, newSlot.ID); err != nil {
				return err
			}
			if err := tx.ReleaseSlot(lockCtx, appt.SlotID); err != nil {
				return err
			}

			updated, err := tx.MoveAppointment(lockCtx, appt.ID, appt.SlotID, appt.Status, newSlot)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					return fmt.Errorf("%w: appointment changed concurrently", ErrConflict)
				}
				return err
			}

			oldStart = *appt
			moved = updated
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	c.log.Info("appointment rescheduled",
		zap.String("appointment_id", moved.ID.String()),
		zap.String("old_slot_id", oldStart.SlotID.String()),
		zap.String("new_slot_id", moved.SlotID.String()))

	c.notifyFor(ctx, moved, func(ev notify.Event) {
		ev.OldStart = oldStart.StartTime
		ev.OldEnd = oldStart.EndTime
		c.dispatcher.AppointmentRescheduled(ctx, ev)
	})

	return moved, nil
}

func buildEvent(appt *Appointment, patient, provider *Party) notify.Event {
	specialty := ""
	if provider.Specialty != nil {
		specialty = *provider.Specialty
	}
	return notify.Event{
		AppointmentID:  appt.ID,
		PatientName:    patient.Name,
		PatientContact: patient.Contact,
		ProviderName:   provider.Name,
		Specialty:      specialty,
		Start:          appt.StartTime,
		End:            appt.EndTime,
		Reason:         appt.Reason,
	}
}

// notifyFor resolves directory details for an already-committed change
// and hands the event to the dispatcher. Lookup failures only cost the
// email, never the booking.
func (c *Coordinator) notifyFor(ctx context.Context, appt *Appointment, send func(notify.Event)) {
	patient, err := c.dir.Patient(ctx, appt.PatientID)
	if err != nil {
		c.log.Warn("notification skipped, patient lookup failed",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		return
	}
	provider, err := c.dir.Provider(ctx, appt.ProviderID)
	if err != nil {
		c.log.Warn("notification skipped, provider lookup failed",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
		return
	}
	send(buildEvent(appt, patient, provider))
}
