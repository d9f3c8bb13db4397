package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSweepRejectsStalePending(t *testing.T) {
	fx := newFixture()
	appt := fx.mustBook(t)

	// Age the appointment past the TTL.
	fx.store.mu.Lock()
	fx.store.appts[appt.ID].CreatedAt = time.Now().Add(-48 * time.Hour)
	fx.store.mu.Unlock()

	sweeper := NewExpirySweeper(fx.store, fx.engine, 24*time.Hour, zap.NewNop())
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Equal(t, StatusRejected, fx.apptStatus(appt.ID))
	assert.Equal(t, SlotAvailable, fx.slotStatus(fx.slot.ID))
}

// The completion log reports what actually got rejected, not the size
// of the stale batch.
func TestSweepCountsOnlyRejected(t *testing.T) {
	fx := newFixture()
	ok := fx.mustBook(t)

	stuckSlot := fx.addSlot(fx.provider.ID, SlotAvailable)
	stuck, err := fx.coord.Book(context.Background(), BookRequest{
		PatientID:  fx.patient.ID,
		ProviderID: fx.provider.ID,
		SlotID:     stuckSlot.ID,
		Actor:      Actor{ID: fx.patient.ID},
	})
	require.NoError(t, err)

	fx.store.mu.Lock()
	fx.store.appts[ok.ID].CreatedAt = time.Now().Add(-48 * time.Hour)
	fx.store.appts[stuck.ID].CreatedAt = time.Now().Add(-48 * time.Hour)
	fx.store.failStatusFor = stuck.ID
	fx.store.mu.Unlock()

	core, logs := observer.New(zapcore.InfoLevel)
	sweeper := NewExpirySweeper(fx.store, fx.engine, 24*time.Hour, zap.New(core))
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Equal(t, StatusRejected, fx.apptStatus(ok.ID))
	assert.Equal(t, StatusPending, fx.apptStatus(stuck.ID))

	entries := logs.FilterMessage("expiry sweep complete").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["rejected"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["skipped"])
}

func TestSweepLeavesFreshAndConfirmedAlone(t *testing.T) {
	fx := newFixture()
	fresh := fx.mustBook(t)

	confirmedSlot := fx.addSlot(fx.provider.ID, SlotAvailable)
	confirmed, err := fx.coord.Book(context.Background(), BookRequest{
		PatientID:  fx.patient.ID,
		ProviderID: fx.provider.ID,
		SlotID:     confirmedSlot.ID,
		Actor:      Actor{ID: fx.patient.ID},
	})
	require.NoError(t, err)
	_, err = fx.engine.UpdateStatus(context.Background(), confirmed.ID, admin, StatusConfirmed, nil)
	require.NoError(t, err)

	// Confirmed but old: must survive the sweep.
	fx.store.mu.Lock()
	fx.store.appts[confirmed.ID].CreatedAt = time.Now().Add(-48 * time.Hour)
	fx.store.mu.Unlock()

	sweeper := NewExpirySweeper(fx.store, fx.engine, 24*time.Hour, zap.NewNop())
	require.NoError(t, sweeper.Sweep(context.Background()))

	assert.Equal(t, StatusPending, fx.apptStatus(fresh.ID))
	assert.Equal(t, StatusConfirmed, fx.apptStatus(confirmed.ID))
}
