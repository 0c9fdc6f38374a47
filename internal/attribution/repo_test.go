package attribution_test

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/attribution"
	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepo_StampOnceAndDashboard(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(t)
	store := &purchases.Repo{DB: pool}
	music, err := catalog.Load("")
	require.NoError(t, err)
	svc := attribution.NewService(&attribution.Repo{DB: pool}, music, nil)

	for _, id := range []int{3, 7} {
		_, err := svc.LogPreview(ctx, attribution.Engagement{TrackID: id, Source: attribution.SourceAlbumPage, ClientSessionID: "sess-a"})
		require.NoError(t, err)
	}
	last, err := svc.LastEngagement(ctx, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 7, last.TrackID)

	in := &purchases.Intent{
		CorrelationKey:  uuid.NewString(),
		Kind:            purchases.KindTrack,
		Customer:        purchases.Customer{Email: "bob@example.com"},
		TotalCents:      99,
		Currency:        "usd",
		ClientSessionID: "sess-a",
		Music:           &purchases.MusicDetail{TrackID: 7, TrackTitle: "Starlight Meditation"},
	}
	require.NoError(t, store.CreateIntent(ctx, in))
	res, err := store.MarkPaid(ctx, in.CorrelationKey, "pi_1", "cs_1")
	require.NoError(t, err)

	require.NoError(t, svc.StampPurchase(ctx, res.Intent))

	// a later play must not move the stamp on replay
	time.Sleep(10 * time.Millisecond)
	_, err = svc.LogPreview(ctx, attribution.Engagement{TrackID: 12, Source: attribution.SourceHomepage, ClientSessionID: "sess-a"})
	require.NoError(t, err)
	require.NoError(t, svc.StampPurchase(ctx, res.Intent))

	got, err := store.GetByCorrelationKey(ctx, in.CorrelationKey)
	require.NoError(t, err)
	require.NotNil(t, got.Attribution)
	assert.Equal(t, 7, got.Attribution.TrackID)
	assert.Equal(t, "sess-a", got.Attribution.ClientSessionID)

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM music_purchases WHERE intent_id=$1`, in.ID).Scan(&rows))
	assert.Equal(t, 1, rows)

	d, err := svc.DashboardStats(ctx)
	require.NoError(t, err)
	require.Len(t, d.TotalPurchases, 1)
	assert.Equal(t, purchases.KindTrack, d.TotalPurchases[0].Kind)
	assert.EqualValues(t, 1, d.TotalPurchases[0].Count)
	assert.EqualValues(t, 99, d.TotalPurchases[0].RevenueCents)
	require.Len(t, d.ConversionAttribution, 1)
	assert.Equal(t, 7, d.ConversionAttribution[0].TrackID)
	assert.Len(t, d.PlaysByTrack, 3)
	require.Len(t, d.RecentPurchases, 1)
	assert.Equal(t, "bob@example.com", d.RecentPurchases[0].CustomerEmail)
}

func TestRepo_NoEngagement(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestPool(t)
	repo := &attribution.Repo{DB: pool}

	e, err := repo.LastEngagement(ctx, "empty-session", time.Now())
	require.NoError(t, err)
	assert.Nil(t, e)
}
