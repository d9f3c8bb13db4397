package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSender struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan struct{}
}

func (s *stubSender) Send(ctx context.Context, eventType string, ev Event) error {
	s.mu.Lock()
	s.calls = append(s.calls, eventType)
	s.mu.Unlock()
	close(s.done)
	return s.err
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender never invoked")
	}
}

func TestAsyncDispatcherDelivers(t *testing.T) {
	sender := &stubSender{done: make(chan struct{})}
	d := NewAsyncDispatcher(sender, nil, zap.NewNop())

	d.AppointmentCreated(context.Background(), Event{AppointmentID: uuid.New()})
	waitDone(t, sender.done)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.calls, 1)
	assert.Equal(t, EventCreated, sender.calls[0])
}

// A failing sender is logged and absorbed; the dispatch call itself
// never reports the failure.
func TestAsyncDispatcherAbsorbsFailure(t *testing.T) {
	sender := &stubSender{done: make(chan struct{}), err: errors.New("smtp down")}
	d := NewAsyncDispatcher(sender, nil, zap.NewNop())

	d.AppointmentCancelled(context.Background(), Event{AppointmentID: uuid.New()})
	waitDone(t, sender.done)
}

// Delivery must survive the caller's context being cancelled: the
// booking has already committed.
func TestAsyncDispatcherDetachesFromCaller(t *testing.T) {
	sender := &stubSender{done: make(chan struct{})}
	d := NewAsyncDispatcher(sender, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.AppointmentRescheduled(ctx, Event{AppointmentID: uuid.New()})
	waitDone(t, sender.done)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	err := s.Send(context.Background(), EventConfirmed, Event{
		AppointmentID:  uuid.New(),
		PatientContact: "ana@example.com",
	})
	require.NoError(t, err)
}
