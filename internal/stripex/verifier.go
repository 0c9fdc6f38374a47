package stripex

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/webhook"
	"github.com/stripe/stripe-go/v76"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"
)

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: secret} }

// Verify checks the Stripe-Signature header against the exact bytes received
// and decodes checkout session payloads.
func (v *Verifier) Verify(payload []byte, sigHeader string) (webhook.Notification, error) {
	if sigHeader == "" {
		return webhook.Notification{}, fmt.Errorf("%w: missing signature header", purchases.ErrSignatureInvalid)
	}
	evt, err := stripewebhook.ConstructEventWithOptions(payload, sigHeader, v.secret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return webhook.Notification{}, fmt.Errorf("%w: %v", purchases.ErrSignatureInvalid, err)
	}

	n := webhook.Notification{ID: evt.ID, Type: string(evt.Type), Livemode: evt.Livemode}
	if !strings.HasPrefix(n.Type, "checkout.session.") {
		return n, nil
	}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return n, fmt.Errorf("%w: %s without data", purchases.ErrMalformedEvent, n.Type)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return n, fmt.Errorf("%w: decode checkout session: %v", purchases.ErrMalformedEvent, err)
	}

	s := &webhook.CheckoutSession{
		ID:            cs.ID,
		PaymentStatus: string(cs.PaymentStatus),
		CustomerEmail: cs.CustomerEmail,
		AmountTotal:   cs.AmountTotal,
		Metadata:      cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		s.PaymentRef = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil {
		s.CustomerName = cs.CustomerDetails.Name
		if s.CustomerEmail == "" {
			s.CustomerEmail = cs.CustomerDetails.Email
		}
	}
	n.Session = s
	return n, nil
}
