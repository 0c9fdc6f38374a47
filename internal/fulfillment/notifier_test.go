package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) (*Notifier, *fakeMailer, *fakeList, *fakeAlerts) {
	t.Helper()
	music, err := catalog.Load("")
	require.NoError(t, err)
	m, l, a := &fakeMailer{}, &fakeList{}, &fakeAlerts{}
	return &Notifier{
		Mailer:    m,
		List:      l,
		Alerts:    a,
		Links:     StaticLinks{BaseURL: "https://cdn.example.com"},
		Music:     music,
		SegmentID: "seg-1",
	}, m, l, a
}

func bookingPurchase() Purchase {
	return Purchase{
		Intent: purchases.Intent{
			CorrelationKey: "key-b",
			Kind:           purchases.KindBooking,
			Customer:       purchases.Customer{Name: "Mary Ann Smith", Email: "mary@example.com"},
			TotalCents:     9000,
			Currency:       "usd",
			Booking:        &purchases.BookingDetail{EventID: 1, Seats: 2, SpecialRequests: "window seat"},
		},
		Event: &purchases.Event{ID: 1, Title: "Sunrise Paddle", StartTime: time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)},
	}
}

func TestDispatch_Booking(t *testing.T) {
	n, mailer, list, alerts := newTestNotifier(t)

	require.NoError(t, n.Dispatch(context.Background(), bookingPurchase()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "mary@example.com", mailer.sent[0].To)
	assert.Equal(t, "Booking Confirmed: Sunrise Paddle", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Saturday, March 14, 2026")
	assert.Contains(t, mailer.sent[0].HTML, "window seat")

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "New Booking: Sunrise Paddle", alerts.alerts[0].Title)
	assert.Equal(t, "Mary Ann Smith (mary@example.com) booked 2 spot(s) for Saturday, March 14, 2026. Total: $90.00", alerts.alerts[0].Content)

	require.Len(t, list.subs, 1)
	sub := list.subs[0]
	assert.Equal(t, "Mary", sub.FirstName)
	assert.Equal(t, "Ann Smith", sub.LastName)
	assert.Equal(t, []string{"seg-1"}, sub.SegmentIDs)
	assert.Equal(t, map[string]string{
		"last_booking_event":  "Sunrise Paddle",
		"last_booking_date":   "Saturday, March 14, 2026",
		"last_booking_amount": "$90.00",
	}, sub.CustomFields)
}

func TestDispatch_FailuresAreIsolated(t *testing.T) {
	n, mailer, list, alerts := newTestNotifier(t)
	mailer.err = errors.New("relay down")
	alerts.err = errors.New("broker down")

	err := n.Dispatch(context.Background(), bookingPurchase())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking_confirmation")
	assert.Contains(t, err.Error(), "owner_alert")

	// mailing list still ran
	assert.Len(t, list.subs, 1)
}

func TestDispatch_OptionalIntegrations(t *testing.T) {
	n, mailer, _, _ := newTestNotifier(t)
	n.List, n.Alerts, n.SegmentID = nil, nil, ""

	require.NoError(t, n.Dispatch(context.Background(), bookingPurchase()))
	assert.Len(t, mailer.sent, 1)
}

func TestDispatch_Order(t *testing.T) {
	n, mailer, list, alerts := newTestNotifier(t)
	err := n.Dispatch(context.Background(), Purchase{Intent: purchases.Intent{
		Kind:  purchases.KindOrder,
		Order: &purchases.OrderDetail{OrderNumber: "DP-1-ABCDEF"},
	}})
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, list.subs)
	assert.Empty(t, alerts.alerts)
}

func TestDispatch_Album(t *testing.T) {
	n, mailer, list, alerts := newTestNotifier(t)
	p := Purchase{Intent: purchases.Intent{
		CorrelationKey: "key-a",
		Kind:           purchases.KindAlbum,
		Customer:       purchases.Customer{Name: "Customer", Email: "bob@example.com"},
		TotalCents:     2500,
		Currency:       "usd",
		Music:          &purchases.MusicDetail{TrackTitle: "Sonoran Echoes - Complete Album"},
	}}

	require.NoError(t, n.Dispatch(context.Background(), p))
	require.Len(t, mailer.sent, 1)
	html := mailer.sent[0].HTML
	assert.Contains(t, html, "https://cdn.example.com/sonoran-echoes/01-Desert-Dawn.wav")
	assert.Contains(t, html, "https://cdn.example.com/sonoran-echoes/18-Eternal-Calm.wav")
	assert.Empty(t, list.subs)

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "Album Purchase: sonoran-echoes", alerts.alerts[0].Title)
	assert.Contains(t, alerts.alerts[0].Content, "for $25.00")
}

func TestDispatch_Track(t *testing.T) {
	n, mailer, _, alerts := newTestNotifier(t)
	p := Purchase{Intent: purchases.Intent{
		CorrelationKey: "key-t",
		Kind:           purchases.KindTrack,
		Customer:       purchases.Customer{Name: "Customer", Email: "bob@example.com"},
		TotalCents:     99,
		Currency:       "usd",
		Music:          &purchases.MusicDetail{TrackID: 7, TrackTitle: "Starlight Meditation"},
	}}

	require.NoError(t, n.Dispatch(context.Background(), p))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, `Your Track "Starlight Meditation" is Ready to Download!`, mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "07-Starlight-Meditation.wav")
	assert.NotContains(t, mailer.sent[0].HTML, "01-Desert-Dawn.wav")

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, "Track Purchase: Starlight Meditation", alerts.alerts[0].Title)
	assert.Equal(t, `Customer (bob@example.com) purchased "Starlight Meditation" for $0.99`, alerts.alerts[0].Content)
}

func TestDispatch_MusicWithoutEmailStillAlerts(t *testing.T) {
	n, mailer, _, alerts := newTestNotifier(t)
	p := Purchase{Intent: purchases.Intent{
		Kind:  purchases.KindTrack,
		Music: &purchases.MusicDetail{TrackID: 3, TrackTitle: "Canyon Whispers"},
	}}
	err := n.Dispatch(context.Background(), p)
	assert.ErrorIs(t, err, errNoRecipient)
	assert.Empty(t, mailer.sent)
	assert.Len(t, alerts.alerts, 1)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.99", FormatMoney(99, "usd"))
	assert.Equal(t, "$25.00", FormatMoney(2500, ""))
	assert.Equal(t, "12.05 EUR", FormatMoney(1205, "eur"))
	assert.Equal(t, "-$1.50", FormatMoney(-150, "USD"))
}

func TestSplitName(t *testing.T) {
	f, l := SplitName("  Cher ")
	assert.Equal(t, "Cher", f)
	assert.Equal(t, "", l)
	f, l = SplitName("Mary Ann Smith")
	assert.Equal(t, "Mary", f)
	assert.Equal(t, "Ann Smith", l)
}
