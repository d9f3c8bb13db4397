package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AsyncDispatcher hands each event to the sender on its own goroutine
// with a detached context, so slow or failing delivery never holds a
// booking transaction open. Each event is also recorded to the audit
// log when a recorder is configured.
type AsyncDispatcher struct {
	sender   Sender
	recorder *EventRecorder
	log      *zap.Logger
	timeout  time.Duration
}

func NewAsyncDispatcher(sender Sender, recorder *EventRecorder, log *zap.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{
		sender:   sender,
		recorder: recorder,
		log:      log,
		timeout:  10 * time.Second,
	}
}

func (d *AsyncDispatcher) AppointmentCreated(ctx context.Context, ev Event)     { d.dispatch(EventCreated, ev) }
func (d *AsyncDispatcher) AppointmentConfirmed(ctx context.Context, ev Event)   { d.dispatch(EventConfirmed, ev) }
func (d *AsyncDispatcher) AppointmentCancelled(ctx context.Context, ev Event)   { d.dispatch(EventCancelled, ev) }
func (d *AsyncDispatcher) AppointmentRescheduled(ctx context.Context, ev Event) { d.dispatch(EventRescheduled, ev) }
func (d *AsyncDispatcher) AppointmentRejected(ctx context.Context, ev Event)    { d.dispatch(EventRejected, ev) }

func (d *AsyncDispatcher) dispatch(eventType string, ev Event) {
	// Detached from the request context: the booking has committed by
	// the time we get here, a cancelled request must not stop delivery.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if d.recorder != nil {
			if err := d.recorder.Record(ctx, eventType, ev); err != nil {
				d.log.Warn("event log write failed",
					zap.String("event", eventType),
					zap.String("appointment_id", ev.AppointmentID.String()),
					zap.Error(err))
			}
		}

		if err := d.sender.Send(ctx, eventType, ev); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("event", eventType),
				zap.String("appointment_id", ev.AppointmentID.String()),
				zap.String("contact", ev.PatientContact),
				zap.Error(err))
			return
		}

		d.log.Debug("notification delivered",
			zap.String("event", eventType),
			zap.String("appointment_id", ev.AppointmentID.String()))
	}()
}

// LogSender is the default Sender: it writes the would-be email to the
// log. Real SMTP delivery plugs in behind the same interface.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, eventType string, ev Event) error {
	fields := []zap.Field{
		zap.String("event", eventType),
		zap.String("to", ev.PatientContact),
		zap.String("patient", ev.PatientName),
		zap.String("provider", ev.ProviderName),
		zap.String("specialty", ev.Specialty),
		zap.Time("start", ev.Start),
	}
	if eventType == EventRescheduled {
		fields = append(fields, zap.Time("old_start", ev.OldStart))
	}
	s.log.Info("booking notification", fields...)
	return nil
}
