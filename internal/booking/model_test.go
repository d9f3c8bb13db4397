package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppointmentStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "attended", "cancelled", "rejected", "no_show"} {
		st, err := ParseAppointmentStatus(s)
		require.NoError(t, err)
		assert.Equal(t, AppointmentStatus(s), st)
	}

	_, err := ParseAppointmentStatus("rescheduled")
	require.ErrorIs(t, err, ErrUnknownStatus)
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseAppointmentStatus("")
	require.Error(t, err)
}

func TestDisplayProjection(t *testing.T) {
	// Pending and confirmed collapse into one calendar label.
	assert.Equal(t, DisplayBooked, Display(StatusPending))
	assert.Equal(t, DisplayBooked, Display(StatusConfirmed))
	assert.Equal(t, DisplayAttended, Display(StatusAttended))
	assert.Equal(t, DisplayNoShow, Display(StatusNoShow))
	assert.Equal(t, DisplayCancelled, Display(StatusCancelled))
	assert.Equal(t, DisplayCancelled, Display(StatusRejected))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusAttended.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusCancelled.Terminal())
	assert.False(t, StatusNoShow.Terminal())

	assert.True(t, StatusPending.Active())
	assert.True(t, StatusNoShow.Active())
	assert.False(t, StatusCancelled.Active())
	assert.False(t, StatusRejected.Active())
}
