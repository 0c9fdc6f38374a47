package purchases

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// reserveSeats commits seats against the event in one conditional update, so
// the capacity check and the increment can never be split between two callers.
func reserveSeats(ctx context.Context, tx pgx.Tx, eventID int64, seats int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE events SET current_bookings = current_bookings + $2, updated_at = now()
		WHERE id = $1 AND status = 'scheduled' AND current_bookings + $2 <= max_capacity`,
		eventID, seats)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("event %d, %d seats: %w", eventID, seats, ErrCapacityExceeded)
	}
	return nil
}

func reserveStock(ctx context.Context, tx pgx.Tx, productID int64, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET inventory = inventory - $2, updated_at = now()
		WHERE id = $1 AND is_active AND inventory IS NOT NULL AND inventory >= $2`,
		productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("product %d, qty %d: %w", productID, qty, ErrInsufficientInventory)
	}
	return nil
}

// reservedByProduct lists the stock-holding lines in product id order. Every
// transaction touching product rows goes through it so row locks are always
// taken in the same order.
func reservedByProduct(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.Reserved {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b LineItem) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out
}

func lockIntent(ctx context.Context, tx pgx.Tx, correlationKey string) (Intent, error) {
	in, err := scanIntent(tx.QueryRow(ctx, `SELECT `+intentColumns+` FROM purchase_intents
		WHERE correlation_key=$1 FOR UPDATE`, correlationKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, fmt.Errorf("intent %s: %w", correlationKey, ErrNotFound)
	}
	if err != nil {
		return Intent{}, err
	}
	if in.Kind == KindOrder {
		if in.Order.Items, err = loadItems(ctx, tx, in.ID); err != nil {
			return Intent{}, err
		}
	}
	return in, nil
}

// release gives back whatever capacity the intent committed.
func release(ctx context.Context, tx pgx.Tx, in Intent) error {
	switch in.Kind {
	case KindBooking:
		ct, err := tx.Exec(ctx, `
			UPDATE events SET current_bookings = current_bookings - $2, updated_at = now()
			WHERE id = $1 AND current_bookings >= $2`, in.Booking.EventID, in.Booking.Seats)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return fmt.Errorf("release %d seats on event %d: committed count too low", in.Booking.Seats, in.Booking.EventID)
		}
	case KindOrder:
		for _, it := range reservedByProduct(in.Order.Items) {
			if _, err := tx.Exec(ctx, `
				UPDATE products SET inventory = inventory + $2, updated_at = now()
				WHERE id = $1 AND inventory IS NOT NULL`, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
	case KindAlbum, KindTrack:
	}
	return nil
}

// recommit takes capacity again for a cancelled intent whose payment arrived
// anyway. It reports false, having taken nothing, when the capacity is gone.
func recommit(ctx context.Context, tx pgx.Tx, in Intent) (bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	switch in.Kind {
	case KindBooking:
		err = reserveSeats(ctx, sp, in.Booking.EventID, in.Booking.Seats)
	case KindOrder:
		for _, it := range reservedByProduct(in.Order.Items) {
			if err = reserveStock(ctx, sp, it.ProductID, it.Qty); err != nil {
				break
			}
		}
	case KindAlbum, KindTrack:
	}
	if errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrInsufficientInventory) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, sp.Commit(ctx)
}

// CancelIntent is the compensating action for a reservation whose checkout
// never reached the processor (or whose session expired). It only acts on
// pending, unpaid intents and reports whether anything was released.
func (r *Repo) CancelIntent(ctx context.Context, correlationKey, reason string) (bool, error) {
	var released bool
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		in, err := lockIntent(ctx, tx, correlationKey)
		if err != nil {
			return err
		}
		if in.PaymentStatus != PaymentPending || !CanTransition(in.Status, StatusCancelled) {
			return nil
		}
		if err := release(ctx, tx, in); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_intents SET status='cancelled', cancel_reason=$2, updated_at=now()
			WHERE id=$1`, in.ID, reason); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// MarkPaid moves a pending intent to paid. Concurrent deliveries serialize on
// the row lock; the loser sees the intent already paid and gets Applied=false.
// A cancelled intent takes its capacity back first; when that is no longer
// possible it is still marked paid and Oversold is set.
func (r *Repo) MarkPaid(ctx context.Context, correlationKey, paymentRef, sessionID string) (MarkPaidResult, error) {
	var res MarkPaidResult
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		in, err := lockIntent(ctx, tx, correlationKey)
		if err != nil {
			return err
		}
		if !CanTransitionPayment(in.PaymentStatus, PaymentPaid) {
			res = MarkPaidResult{Intent: in}
			return nil
		}

		if in.Status == StatusCancelled {
			res.WasCancelled = true
			ok, err := recommit(ctx, tx, in)
			if err != nil {
				return err
			}
			res.Oversold = !ok
		}

		var paidAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE purchase_intents
			SET payment_status='paid', status='confirmed', payment_ref=$2,
			    processor_session_id = COALESCE(processor_session_id, NULLIF($3, '')),
			    paid_at=now(), updated_at=now()
			WHERE id=$1
			RETURNING paid_at`, in.ID, paymentRef, sessionID).Scan(&paidAt); err != nil {
			return err
		}

		in.PaymentStatus = PaymentPaid
		in.Status = StatusConfirmed
		in.PaymentRef = paymentRef
		in.PaidAt = &paidAt
		if in.ProcessorSessionID == "" {
			in.ProcessorSessionID = sessionID
		}
		res.Intent = in
		res.Applied = true
		return nil
	})
	return res, err
}
