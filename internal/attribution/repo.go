package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InsertEngagement(ctx context.Context, e *Engagement) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO engagement_events(track_id, track_title, source, client_session_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id, played_at`,
		e.TrackID, e.TrackTitle, string(e.Source), e.ClientSessionID,
	).Scan(&e.ID, &e.PlayedAt)
}

func (r *Repo) LastEngagement(ctx context.Context, sessionID string, before time.Time) (*Engagement, error) {
	var (
		e      Engagement
		source string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, track_id, track_title, source, client_session_id, played_at
		FROM engagement_events
		WHERE client_session_id=$1 AND played_at <= $2
		ORDER BY played_at DESC, id DESC
		LIMIT 1`, sessionID, before,
	).Scan(&e.ID, &e.TrackID, &e.TrackTitle, &source, &e.ClientSessionID, &e.PlayedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Source = Source(source)
	return &e, nil
}

func (r *Repo) RecordPurchase(ctx context.Context, in purchases.Intent, last *Engagement) (bool, error) {
	var (
		lastID    *int
		lastTitle string
		trackID   *int
		title     string
	)
	if last != nil {
		lastID, lastTitle = &last.TrackID, last.TrackTitle
	}
	if in.Music != nil {
		title = in.Music.TrackTitle
		if in.Music.TrackID > 0 {
			trackID = &in.Music.TrackID
		}
	}

	var inserted bool
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		// write-once: a stamp that exists is never overwritten
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_intents
			SET attr_track_id=$2, attr_track_title=$3, attr_session_id=$4, attributed_at=now(), updated_at=now()
			WHERE id=$1 AND attributed_at IS NULL`,
			in.ID, lastID, lastTitle, in.ClientSessionID); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx, `
			INSERT INTO music_purchases(intent_id, purchase_type, track_id, track_title, customer_email, customer_name,
				amount_cents, processor_session_id, last_played_track_id, last_played_track_title, client_session_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (intent_id) DO NOTHING`,
			in.ID, string(in.Kind), trackID, title, in.Customer.Email, in.Customer.Name,
			in.TotalCents, in.ProcessorSessionID, lastID, lastTitle, in.ClientSessionID)
		if err != nil {
			return err
		}
		inserted = ct.RowsAffected() == 1
		return nil
	})
	return inserted, err
}

func (r *Repo) Dashboard(ctx context.Context, recent int) (Dashboard, error) {
	d := Dashboard{
		PlaysByTrack:          []TrackPlays{},
		TotalPurchases:        []PurchaseTotals{},
		ConversionAttribution: []Conversion{},
		RecentPurchases:       []RecentPurchase{},
	}

	rows, err := r.DB.Query(ctx, `
		SELECT track_id, track_title, count(*) FROM engagement_events
		GROUP BY track_id, track_title ORDER BY count(*) DESC, track_id`)
	if err != nil {
		return d, err
	}
	d.PlaysByTrack, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (TrackPlays, error) {
		var t TrackPlays
		err := row.Scan(&t.TrackID, &t.TrackTitle, &t.Plays)
		return t, err
	})
	if err != nil {
		return d, err
	}

	rows, err = r.DB.Query(ctx, `
		SELECT purchase_type, count(*), COALESCE(sum(amount_cents), 0) FROM music_purchases
		GROUP BY purchase_type ORDER BY purchase_type`)
	if err != nil {
		return d, err
	}
	d.TotalPurchases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseTotals, error) {
		var (
			p    PurchaseTotals
			kind string
		)
		err := row.Scan(&kind, &p.Count, &p.RevenueCents)
		p.Kind = purchases.Kind(kind)
		return p, err
	})
	if err != nil {
		return d, err
	}

	rows, err = r.DB.Query(ctx, `
		SELECT last_played_track_id, last_played_track_title, count(*) FROM music_purchases
		WHERE last_played_track_id IS NOT NULL
		GROUP BY last_played_track_id, last_played_track_title ORDER BY count(*) DESC, last_played_track_id`)
	if err != nil {
		return d, err
	}
	d.ConversionAttribution, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Conversion, error) {
		var c Conversion
		err := row.Scan(&c.TrackID, &c.TrackTitle, &c.Purchases)
		return c, err
	})
	if err != nil {
		return d, err
	}

	rows, err = r.DB.Query(ctx, `
		SELECT intent_id, purchase_type, track_id, track_title, customer_email, amount_cents,
			last_played_track_id, last_played_track_title, purchased_at
		FROM music_purchases ORDER BY purchased_at DESC, id DESC LIMIT $1`, recent)
	if err != nil {
		return d, err
	}
	d.RecentPurchases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecentPurchase, error) {
		var (
			p    RecentPurchase
			kind string
		)
		err := row.Scan(&p.IntentID, &kind, &p.TrackID, &p.TrackTitle, &p.CustomerEmail, &p.AmountCents,
			&p.LastPlayedTrackID, &p.LastPlayedTrackTitle, &p.PurchasedAt)
		p.Kind = purchases.Kind(kind)
		return p, err
	})
	return d, err
}
