package purchases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusCancelled, StatusConfirmed))
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
	assert.False(t, CanTransition(StatusConfirmed, StatusCancelled))

	assert.True(t, CanTransitionPayment(PaymentPending, PaymentPaid))
	assert.True(t, CanTransitionPayment(PaymentPaid, PaymentRefunded))
	assert.False(t, CanTransitionPayment(PaymentPaid, PaymentPaid))
	assert.False(t, CanTransitionPayment(PaymentRefunded, PaymentPending))
}

func TestIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{
			name:   "booking",
			intent: Intent{CorrelationKey: "k", Kind: KindBooking, Booking: &BookingDetail{EventID: 1, Seats: 2}},
		},
		{
			name:    "booking without seats",
			intent:  Intent{CorrelationKey: "k", Kind: KindBooking, Booking: &BookingDetail{EventID: 1}},
			wantErr: true,
		},
		{
			name:    "booking with order detail",
			intent:  Intent{CorrelationKey: "k", Kind: KindBooking, Booking: &BookingDetail{Seats: 1}, Order: &OrderDetail{}},
			wantErr: true,
		},
		{
			name:   "order",
			intent: Intent{CorrelationKey: "k", Kind: KindOrder, Order: &OrderDetail{Items: []LineItem{{ProductID: 1, Qty: 1}}}},
		},
		{
			name:    "order without items",
			intent:  Intent{CorrelationKey: "k", Kind: KindOrder, Order: &OrderDetail{}},
			wantErr: true,
		},
		{
			name:   "album",
			intent: Intent{CorrelationKey: "k", Kind: KindAlbum, Music: &MusicDetail{}},
		},
		{
			name:    "track without id",
			intent:  Intent{CorrelationKey: "k", Kind: KindTrack, Music: &MusicDetail{}},
			wantErr: true,
		},
		{
			name:    "missing correlation key",
			intent:  Intent{Kind: KindAlbum, Music: &MusicDetail{}},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			intent:  Intent{CorrelationKey: "k", Kind: "gift"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEventSeatsLeft(t *testing.T) {
	assert.Equal(t, 3, Event{MaxCapacity: 10, CurrentBookings: 7}.SeatsLeft())
	assert.Equal(t, 0, Event{MaxCapacity: 1, CurrentBookings: 2}.SeatsLeft())
}

func TestProductTracksInventory(t *testing.T) {
	stock := 3
	assert.True(t, Product{Inventory: &stock}.TracksInventory())
	assert.False(t, Product{Inventory: &stock, IsDigital: true}.TracksInventory())
	assert.False(t, Product{}.TracksInventory())
	require.NotNil(t, Product{Inventory: &stock}.Inventory)
}
