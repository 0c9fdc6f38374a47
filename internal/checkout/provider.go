package checkout

import (
	"context"
	"time"
)

type LineItem struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int64
}

// SessionRequest is everything a payment processor needs to open a hosted checkout.
type SessionRequest struct {
	// IdempotencyKey is the intent correlation key; retries of the same intent reuse it.
	IdempotencyKey string
	CustomerEmail  string
	Currency       string
	Items          []LineItem
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	// ExpiresAt is zero when the processor default applies.
	ExpiresAt time.Time
}

type Session struct {
	ID  string
	URL string
}

// Provider opens hosted checkout sessions at a payment processor.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}
