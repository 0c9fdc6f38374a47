// Package attribution records preview plays and credits each music purchase to
// the last track the buyer listened to.
package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/catalog"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
)

type Source string

const (
	SourceHomepage  Source = "homepage"
	SourceAlbumPage Source = "album_page"
)

func (s Source) Valid() bool { return s == SourceHomepage || s == SourceAlbumPage }

// Engagement is one preview play by an anonymous client session.
type Engagement struct {
	ID              int64     `json:"id"`
	TrackID         int       `json:"track_id"`
	TrackTitle      string    `json:"track_title"`
	Source          Source    `json:"source"`
	ClientSessionID string    `json:"session_id"`
	PlayedAt        time.Time `json:"played_at"`
}

type TrackPlays struct {
	TrackID    int    `json:"track_id"`
	TrackTitle string `json:"track_title"`
	Plays      int64  `json:"plays"`
}

type PurchaseTotals struct {
	Kind         purchases.Kind `json:"purchase_type"`
	Count        int64          `json:"count"`
	RevenueCents int64          `json:"revenue_cents"`
}

type Conversion struct {
	TrackID    int    `json:"track_id"`
	TrackTitle string `json:"track_title"`
	Purchases  int64  `json:"purchases"`
}

type RecentPurchase struct {
	IntentID             int64          `json:"intent_id"`
	Kind                 purchases.Kind `json:"purchase_type"`
	TrackID              *int           `json:"track_id,omitempty"`
	TrackTitle           string         `json:"track_title,omitempty"`
	CustomerEmail        string         `json:"customer_email"`
	AmountCents          int            `json:"amount_cents"`
	LastPlayedTrackID    *int           `json:"last_played_track_id,omitempty"`
	LastPlayedTrackTitle string         `json:"last_played_track_title,omitempty"`
	PurchasedAt          time.Time      `json:"purchased_at"`
}

type Dashboard struct {
	PlaysByTrack          []TrackPlays     `json:"plays_by_track"`
	TotalPurchases        []PurchaseTotals `json:"total_purchases"`
	ConversionAttribution []Conversion     `json:"conversion_attribution"`
	RecentPurchases       []RecentPurchase `json:"recent_purchases"`
}

type Store interface {
	InsertEngagement(ctx context.Context, e *Engagement) error
	// LastEngagement returns nil when the session has no play at or before the cutoff.
	LastEngagement(ctx context.Context, sessionID string, before time.Time) (*Engagement, error)
	// RecordPurchase stamps the intent once and adds one analytics row; it
	// reports whether the row was new.
	RecordPurchase(ctx context.Context, in purchases.Intent, last *Engagement) (bool, error)
	Dashboard(ctx context.Context, recent int) (Dashboard, error)
}

type Service struct {
	Store Store
	Music *catalog.Music
	Log   *slog.Logger

	now func() time.Time
}

func NewService(store Store, music *catalog.Music, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{Store: store, Music: music, Log: log, now: time.Now}
}

// LogPreview records a play. The title stored is the catalog's, not the client's.
func (s *Service) LogPreview(ctx context.Context, e Engagement) (Engagement, error) {
	e.ClientSessionID = strings.TrimSpace(e.ClientSessionID)
	if e.ClientSessionID == "" {
		return Engagement{}, fmt.Errorf("%w: session id required", purchases.ErrValidation)
	}
	if !e.Source.Valid() {
		return Engagement{}, fmt.Errorf("%w: unknown source %q", purchases.ErrValidation, e.Source)
	}
	t, err := s.Music.Track(e.TrackID)
	if err != nil {
		return Engagement{}, fmt.Errorf("%w: %w", purchases.ErrValidation, err)
	}
	e.TrackTitle = t.Title
	if err := s.Store.InsertEngagement(ctx, &e); err != nil {
		return Engagement{}, fmt.Errorf("insert engagement: %w", err)
	}
	return e, nil
}

func (s *Service) LastEngagement(ctx context.Context, sessionID string) (*Engagement, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", purchases.ErrValidation)
	}
	return s.Store.LastEngagement(ctx, sessionID, s.now())
}

// StampPurchase attributes a paid music intent. Repeated calls for the same
// intent leave the first stamp and the single analytics row untouched.
func (s *Service) StampPurchase(ctx context.Context, in purchases.Intent) error {
	if in.Kind != purchases.KindAlbum && in.Kind != purchases.KindTrack {
		return nil
	}
	var last *Engagement
	if in.ClientSessionID != "" {
		cutoff := s.now()
		if in.PaidAt != nil {
			cutoff = *in.PaidAt
		}
		var err error
		if last, err = s.Store.LastEngagement(ctx, in.ClientSessionID, cutoff); err != nil {
			return fmt.Errorf("last engagement: %w", err)
		}
	}
	inserted, err := s.Store.RecordPurchase(ctx, in, last)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	attrs := []any{"correlation_key", in.CorrelationKey, "kind", in.Kind, "new", inserted}
	if last != nil {
		attrs = append(attrs, "last_played_track", last.TrackID)
	}
	s.Log.Info("purchase attributed", attrs...)
	return nil
}

func (s *Service) DashboardStats(ctx context.Context) (Dashboard, error) {
	return s.Store.Dashboard(ctx, 10)
}
