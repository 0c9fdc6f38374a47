package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed intent store and capacity ledger.
type Repo struct{ DB *pgxpool.Pool }

const intentColumns = `id, correlation_key, kind, payment_status, status, customer_name, customer_email,
	customer_phone, total_cents, currency, processor_session_id, payment_ref, client_session_id, created_at,
	paid_at, event_id, seats, special_requests, order_number, shipping_address, track_id, track_title,
	attr_track_id, attr_track_title, attr_session_id, attributed_at`

func (r *Repo) GetEvent(ctx context.Context, id int64) (Event, error) {
	var e Event
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, title, start_time, end_time, price_cents, max_capacity, current_bookings, status
		FROM events WHERE id=$1`, id).
		Scan(&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.PriceCents, &e.MaxCapacity, &e.CurrentBookings, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Event{}, err
	}
	e.Status = EventStatus(status)
	return e, nil
}

// GetProducts returns the catalog rows for ids; missing ids are simply absent from the map.
func (r *Repo) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price_cents, inventory, is_digital, is_active
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Inventory, &p.IsDigital, &p.IsActive); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// CreateIntent persists a pending intent and, for bookings and orders, commits
// its capacity in the same transaction. On ErrCapacityExceeded or
// ErrInsufficientInventory nothing is written.
func (r *Repo) CreateIntent(ctx context.Context, in *Intent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		switch in.Kind {
		case KindBooking:
			if err := reserveSeats(ctx, tx, in.Booking.EventID, in.Booking.Seats); err != nil {
				return err
			}
		case KindOrder:
			for _, it := range reservedByProduct(in.Order.Items) {
				if err := reserveStock(ctx, tx, it.ProductID, it.Qty); err != nil {
					return err
				}
			}
		case KindAlbum, KindTrack:
			// fixed catalog, nothing to reserve
		}

		if err := insertIntent(ctx, tx, in); err != nil {
			return err
		}
		if in.Kind == KindOrder {
			for _, it := range in.Order.Items {
				if _, err := tx.Exec(ctx, `
					INSERT INTO order_items(intent_id, product_id, product_name, unit_price_cents, qty, total_cents, reserved)
					VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					in.ID, it.ProductID, it.ProductName, it.UnitPriceCents, it.Qty, it.TotalCents, it.Reserved,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func insertIntent(ctx context.Context, tx pgx.Tx, in *Intent) error {
	var (
		eventID, seats, trackID, orderNumber any
		specialRequests, address, trackTitle string
	)
	switch in.Kind {
	case KindBooking:
		eventID, seats, specialRequests = in.Booking.EventID, in.Booking.Seats, in.Booking.SpecialRequests
	case KindOrder:
		orderNumber, address = in.Order.OrderNumber, in.Order.ShippingAddress
	case KindAlbum, KindTrack:
		if in.Music.TrackID > 0 {
			trackID = in.Music.TrackID
		}
		trackTitle = in.Music.TrackTitle
	}

	in.PaymentStatus = PaymentPending
	in.Status = StatusPending
	return tx.QueryRow(ctx, `
		INSERT INTO purchase_intents(correlation_key, kind, payment_status, status, customer_name, customer_email,
			customer_phone, total_cents, currency, client_session_id, event_id, seats, special_requests,
			order_number, shipping_address, track_id, track_title)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id, created_at`,
		in.CorrelationKey, string(in.Kind), string(in.PaymentStatus), string(in.Status), in.Customer.Name,
		in.Customer.Email, in.Customer.Phone, in.TotalCents, in.Currency, in.ClientSessionID, eventID, seats,
		specialRequests, orderNumber, address, trackID, trackTitle,
	).Scan(&in.ID, &in.CreatedAt)
}

// AttachSession records the processor session created for an intent.
func (r *Repo) AttachSession(ctx context.Context, correlationKey, sessionID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE purchase_intents SET processor_session_id=$2, updated_at=now()
		WHERE correlation_key=$1`, correlationKey, sessionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("intent %s: %w", correlationKey, ErrNotFound)
	}
	return nil
}

func (r *Repo) GetByCorrelationKey(ctx context.Context, correlationKey string) (Intent, error) {
	in, err := scanIntent(r.DB.QueryRow(ctx, `SELECT `+intentColumns+` FROM purchase_intents WHERE correlation_key=$1`, correlationKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, fmt.Errorf("intent %s: %w", correlationKey, ErrNotFound)
	}
	if err != nil {
		return Intent{}, err
	}
	if in.Kind == KindOrder {
		if in.Order.Items, err = loadItems(ctx, r.DB, in.ID); err != nil {
			return Intent{}, err
		}
	}
	return in, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, intentID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, product_name, unit_price_cents, qty, total_cents, reserved
		FROM order_items WHERE intent_id=$1 ORDER BY id`, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPriceCents, &it.Qty, &it.TotalCents, &it.Reserved); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanIntent(row pgx.Row) (Intent, error) {
	var (
		in                        Intent
		kind, payment, status     string
		sessionID, orderNumber    *string
		eventID                   *int64
		seats, trackID, attrTrack *int
		specialRequests, address  string
		trackTitle, attrTitle     string
		attrSession               string
		attributedAt              *time.Time
	)
	err := row.Scan(&in.ID, &in.CorrelationKey, &kind, &payment, &status, &in.Customer.Name, &in.Customer.Email,
		&in.Customer.Phone, &in.TotalCents, &in.Currency, &sessionID, &in.PaymentRef, &in.ClientSessionID,
		&in.CreatedAt, &in.PaidAt, &eventID, &seats, &specialRequests, &orderNumber, &address, &trackID,
		&trackTitle, &attrTrack, &attrTitle, &attrSession, &attributedAt)
	if err != nil {
		return Intent{}, err
	}
	in.Kind = Kind(kind)
	in.PaymentStatus = PaymentStatus(payment)
	in.Status = Status(status)
	if sessionID != nil {
		in.ProcessorSessionID = *sessionID
	}

	switch in.Kind {
	case KindBooking:
		b := &BookingDetail{SpecialRequests: specialRequests}
		if eventID != nil {
			b.EventID = *eventID
		}
		if seats != nil {
			b.Seats = *seats
		}
		in.Booking = b
	case KindOrder:
		o := &OrderDetail{ShippingAddress: address}
		if orderNumber != nil {
			o.OrderNumber = *orderNumber
		}
		in.Order = o
	case KindAlbum, KindTrack:
		m := &MusicDetail{TrackTitle: trackTitle}
		if trackID != nil {
			m.TrackID = *trackID
		}
		in.Music = m
	}

	if attributedAt != nil {
		s := &Stamp{TrackTitle: attrTitle, ClientSessionID: attrSession, StampedAt: *attributedAt}
		if attrTrack != nil {
			s.TrackID = *attrTrack
		}
		in.Attribution = s
	}
	return in, nil
}
