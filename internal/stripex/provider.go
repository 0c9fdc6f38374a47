// Package stripex adapts Stripe Checkout to the checkout and webhook packages.
package stripex

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout/internal/checkout"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Provider struct {
	api *client.API
}

func NewProvider(secretKey string) *Provider {
	return &Provider{api: client.New(secretKey, nil)}
}

// NewProviderWithBackends points the client at custom backends (tests, stripe-mock).
func NewProviderWithBackends(secretKey string, backends *stripe.Backends) *Provider {
	return &Provider{api: client.New(secretKey, backends)}
}

func (p *Provider) CreateSession(ctx context.Context, req checkout.SessionRequest) (checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	for _, it := range req.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Description != "" {
			product.Description = stripe.String(it.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(it.UnitAmountCents),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return checkout.Session{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return checkout.Session{ID: s.ID, URL: s.URL}, nil
}
