// Package webhook turns verified payment processor notifications into state
// changes on purchase intents. A notification moves through
// received -> verified -> deduplicated -> routed -> applied.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/fulfillment"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
)

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeTestEvent    Outcome = "test_event"
	OutcomeMalformed    Outcome = "malformed"
)

const testEventPrefix = "evt_test_"

type Verifier interface {
	Verify(payload []byte, sigHeader string) (Notification, error)
}

// Deduper hands out short processing leases on event ids. Commit keeps the id
// for the retention window; an uncommitted lease expires on its own.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Commit(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

type Store interface {
	GetByCorrelationKey(ctx context.Context, correlationKey string) (purchases.Intent, error)
	MarkPaid(ctx context.Context, correlationKey, paymentRef, sessionID string) (purchases.MarkPaidResult, error)
	CancelIntent(ctx context.Context, correlationKey, reason string) (bool, error)
	GetEvent(ctx context.Context, id int64) (purchases.Event, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, p fulfillment.Purchase) error
}

type Attributor interface {
	StampPurchase(ctx context.Context, in purchases.Intent) error
}

type Processor struct {
	Verifier   Verifier
	Dedup      Deduper
	Store      Store
	Notifier   Notifier
	Attributor Attributor
	Log        *slog.Logger

	// ReleaseOnExpired gives back capacity when an unpaid session expires.
	ReleaseOnExpired bool
}

// Handle processes one delivery. A non-nil error is either ErrSignatureInvalid
// (reject) or an infrastructure failure (ask for redelivery); every business
// outcome, including malformed content, is acknowledged.
func (p *Processor) Handle(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	n, err := p.Verifier.Verify(payload, sigHeader)
	switch {
	case errors.Is(err, purchases.ErrSignatureInvalid):
		p.Log.Warn("webhook signature rejected", "err", err)
		return "", err
	case errors.Is(err, purchases.ErrMalformedEvent):
		p.Log.Error("malformed webhook event", "alert", "reconciliation", "event_id", n.ID, "type", n.Type, "err", err)
		return OutcomeMalformed, nil
	case err != nil:
		return "", err
	}
	log := p.Log.With("event_id", n.ID, "type", n.Type)

	if strings.HasPrefix(n.ID, testEventPrefix) {
		log.Info("test event acknowledged")
		return OutcomeTestEvent, nil
	}

	first, err := p.Dedup.Claim(ctx, n.ID)
	if err != nil {
		return "", fmt.Errorf("dedup claim %s: %w", n.ID, err)
	}
	if !first {
		log.Info("duplicate delivery")
		return OutcomeDuplicate, nil
	}

	defer func() {
		if r := recover(); r != nil {
			p.forget(ctx, n.ID, log)
			panic(r)
		}
	}()

	out, err := p.route(ctx, n, log)
	if err != nil {
		p.forget(ctx, n.ID, log)
		log.Error("webhook processing failed", "err", err)
		return "", err
	}
	if err := p.Dedup.Commit(ctx, n.ID); err != nil {
		// the lease expires and a redelivery finds the intent already paid
		log.Warn("dedup commit failed", "err", err)
	}
	log.Info("webhook processed", "outcome", out)
	return out, nil
}

// forget drops the claim so the redelivery gets a full attempt.
func (p *Processor) forget(ctx context.Context, id string, log *slog.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.Dedup.Release(rctx, id); err != nil {
		log.Error("dedup release failed", "err", err)
	}
}

func (p *Processor) route(ctx context.Context, n Notification, log *slog.Logger) (Outcome, error) {
	switch n.Type {
	case TypeSessionCompleted, TypeSessionAsyncSucceeded:
		return p.apply(ctx, n, log)
	case TypeSessionExpired:
		if !p.ReleaseOnExpired {
			return OutcomeIgnored, nil
		}
		return p.release(ctx, n, log)
	default:
		return OutcomeIgnored, nil
	}
}

// resolve reads the business context from the session and checks it against
// the stored intent. Only infrastructure failures come back as errors.
func (p *Processor) resolve(ctx context.Context, n Notification, log *slog.Logger) (purchases.Intent, bool, error) {
	if n.Session == nil {
		log.Error("session payload missing", "alert", "reconciliation")
		return purchases.Intent{}, false, nil
	}
	meta, err := purchases.ParseMetadata(n.Session.Metadata)
	if err != nil {
		log.Error("unusable session metadata", "alert", "reconciliation", "session_id", n.Session.ID, "err", err)
		return purchases.Intent{}, false, nil
	}
	in, err := p.Store.GetByCorrelationKey(ctx, meta.CorrelationKey)
	if errors.Is(err, purchases.ErrNotFound) {
		log.Error("unknown correlation key", "alert", "reconciliation", "correlation_key", meta.CorrelationKey, "session_id", n.Session.ID)
		return purchases.Intent{}, false, nil
	}
	if err != nil {
		return purchases.Intent{}, false, err
	}
	if err := meta.Matches(in); err != nil {
		log.Error("metadata does not match intent", "alert", "reconciliation", "correlation_key", meta.CorrelationKey, "err", err)
		return purchases.Intent{}, false, nil
	}
	return in, true, nil
}

func (p *Processor) apply(ctx context.Context, n Notification, log *slog.Logger) (Outcome, error) {
	in, ok, err := p.resolve(ctx, n, log)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeMalformed, nil
	}
	s := n.Session
	if !s.Paid() {
		// delayed payment methods confirm later with async_payment_succeeded
		log.Info("session completed without payment yet", "correlation_key", in.CorrelationKey, "payment_status", s.PaymentStatus)
		return OutcomeAcknowledged, nil
	}

	res, err := p.Store.MarkPaid(ctx, in.CorrelationKey, s.PaymentRef, s.ID)
	if err != nil {
		return "", fmt.Errorf("mark paid %s: %w", in.CorrelationKey, err)
	}
	log = log.With("correlation_key", in.CorrelationKey, "kind", in.Kind)
	if !res.Applied {
		log.Info("intent already paid")
		return OutcomeAcknowledged, nil
	}
	switch {
	case res.Oversold:
		log.Error("payment received for released reservation, capacity already resold", "alert", "reconciliation", "oversold", true, "intent_id", res.Intent.ID)
	case res.WasCancelled:
		log.Warn("payment received for released reservation, capacity taken back", "intent_id", res.Intent.ID)
	}
	if s.AmountTotal > 0 && s.AmountTotal < int64(res.Intent.TotalCents) {
		// promotion codes lower the charged amount
		log.Info("charged amount below intent total", "amount_total", s.AmountTotal, "total_cents", res.Intent.TotalCents)
	}

	p.fulfill(ctx, res.Intent, s, log)
	return OutcomeApplied, nil
}

// fulfill runs side effects once per applied payment. Failures are logged only.
func (p *Processor) fulfill(ctx context.Context, in purchases.Intent, s *CheckoutSession, log *slog.Logger) {
	if in.Customer.Email == "" {
		in.Customer.Email = s.CustomerEmail
	}
	if in.Customer.Name == "" {
		in.Customer.Name = s.CustomerName
	}
	if in.Customer.Name == "" {
		in.Customer.Name = "Customer"
	}

	purchase := fulfillment.Purchase{Intent: in}
	if in.Kind == purchases.KindBooking {
		ev, err := p.Store.GetEvent(ctx, in.Booking.EventID)
		if err != nil {
			log.Warn("event lookup for notifications failed", "event_id", in.Booking.EventID, "err", err)
		} else {
			purchase.Event = &ev
		}
	}

	if p.Attributor != nil {
		if err := p.Attributor.StampPurchase(ctx, in); err != nil {
			log.Error("attribution failed", "err", err)
		}
	}
	if p.Notifier != nil {
		if err := p.Notifier.Dispatch(ctx, purchase); err != nil {
			log.Error("fulfillment incomplete", "err", err)
		}
	}
}

func (p *Processor) release(ctx context.Context, n Notification, log *slog.Logger) (Outcome, error) {
	in, ok, err := p.resolve(ctx, n, log)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeMalformed, nil
	}
	released, err := p.Store.CancelIntent(ctx, in.CorrelationKey, "session_expired")
	if err != nil {
		return "", fmt.Errorf("release %s: %w", in.CorrelationKey, err)
	}
	log.Info("expired session handled", "correlation_key", in.CorrelationKey, "released", released)
	return OutcomeAcknowledged, nil
}
