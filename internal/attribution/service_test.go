package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	plays    []Engagement
	stamps   map[int64]*Engagement
	rows     map[int64]purchases.Intent
	attempts int
}

func newMemStore() *memStore {
	return &memStore{stamps: map[int64]*Engagement{}, rows: map[int64]purchases.Intent{}}
}

func (m *memStore) InsertEngagement(_ context.Context, e *Engagement) error {
	e.ID = int64(len(m.plays) + 1)
	if e.PlayedAt.IsZero() {
		e.PlayedAt = time.Now()
	}
	m.plays = append(m.plays, *e)
	return nil
}

func (m *memStore) LastEngagement(_ context.Context, sessionID string, before time.Time) (*Engagement, error) {
	var last *Engagement
	for i := range m.plays {
		p := m.plays[i]
		if p.ClientSessionID != sessionID || p.PlayedAt.After(before) {
			continue
		}
		if last == nil || !p.PlayedAt.Before(last.PlayedAt) {
			last = &p
		}
	}
	return last, nil
}

func (m *memStore) RecordPurchase(_ context.Context, in purchases.Intent, last *Engagement) (bool, error) {
	m.attempts++
	if _, ok := m.stamps[in.ID]; !ok {
		m.stamps[in.ID] = last
	}
	if _, ok := m.rows[in.ID]; ok {
		return false, nil
	}
	m.rows[in.ID] = in
	return true, nil
}

func (m *memStore) Dashboard(context.Context, int) (Dashboard, error) { return Dashboard{}, nil }

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	music, err := catalog.Load("")
	require.NoError(t, err)
	store := newMemStore()
	return NewService(store, music, nil), store
}

func TestLogPreview(t *testing.T) {
	svc, store := newTestService(t)

	e, err := svc.LogPreview(context.Background(), Engagement{TrackID: 7, TrackTitle: "spoofed", Source: SourceHomepage, ClientSessionID: " s1 "})
	require.NoError(t, err)
	assert.Equal(t, "Starlight Meditation", e.TrackTitle)
	assert.Equal(t, "s1", e.ClientSessionID)
	assert.Len(t, store.plays, 1)

	cases := []Engagement{
		{TrackID: 7, Source: SourceHomepage},
		{TrackID: 7, Source: "radio", ClientSessionID: "s1"},
		{TrackID: 19, Source: SourceAlbumPage, ClientSessionID: "s1"},
		{TrackID: 0, Source: SourceAlbumPage, ClientSessionID: "s1"},
	}
	for _, c := range cases {
		_, err := svc.LogPreview(context.Background(), c)
		assert.ErrorIs(t, err, purchases.ErrValidation)
	}
	assert.Len(t, store.plays, 1)
}

func TestLastEngagement(t *testing.T) {
	svc, store := newTestService(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.plays = []Engagement{
		{TrackID: 3, ClientSessionID: "s1", PlayedAt: base},
		{TrackID: 7, ClientSessionID: "s1", PlayedAt: base.Add(time.Minute)},
		{TrackID: 9, ClientSessionID: "s2", PlayedAt: base.Add(2 * time.Minute)},
	}
	svc.now = func() time.Time { return base.Add(time.Hour) }

	e, err := svc.LastEngagement(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 7, e.TrackID)

	e, err = svc.LastEngagement(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = svc.LastEngagement(context.Background(), "")
	assert.ErrorIs(t, err, purchases.ErrValidation)
}

func TestStampPurchase(t *testing.T) {
	svc, store := newTestService(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	paidAt := base.Add(5 * time.Minute)
	store.plays = []Engagement{
		{TrackID: 3, TrackTitle: "Canyon Whispers", ClientSessionID: "s1", PlayedAt: base},
		{TrackID: 7, TrackTitle: "Starlight Meditation", ClientSessionID: "s1", PlayedAt: base.Add(time.Minute)},
		// after payment, must not count
		{TrackID: 9, TrackTitle: "Ancient Echoes", ClientSessionID: "s1", PlayedAt: base.Add(10 * time.Minute)},
	}
	in := purchases.Intent{
		ID: 11, Kind: purchases.KindTrack, ClientSessionID: "s1", PaidAt: &paidAt,
		Music: &purchases.MusicDetail{TrackID: 7, TrackTitle: "Starlight Meditation"},
	}

	require.NoError(t, svc.StampPurchase(context.Background(), in))
	require.NoError(t, svc.StampPurchase(context.Background(), in))

	assert.Equal(t, 2, store.attempts)
	assert.Len(t, store.rows, 1)
	require.NotNil(t, store.stamps[11])
	assert.Equal(t, 7, store.stamps[11].TrackID)
}

func TestStampPurchase_NoSessionOrNotMusic(t *testing.T) {
	svc, store := newTestService(t)

	require.NoError(t, svc.StampPurchase(context.Background(), purchases.Intent{ID: 1, Kind: purchases.KindAlbum, Music: &purchases.MusicDetail{}}))
	assert.Nil(t, store.stamps[1])
	assert.Len(t, store.rows, 1)

	require.NoError(t, svc.StampPurchase(context.Background(), purchases.Intent{ID: 2, Kind: purchases.KindBooking}))
	assert.Equal(t, 1, store.attempts)
}
