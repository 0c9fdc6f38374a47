package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/webhook"
	"github.com/go-chi/chi/v5"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 1 << 20

type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (webhook.Outcome, error)
}

type WebhookHandler struct {
	Processor WebhookProcessor
	Log       *slog.Logger
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/stripe", h.stripe)
}

// stripe passes the body through byte for byte; the signature covers the raw payload.
func (h *WebhookHandler) stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable body")
		return
	}

	out, err := h.Processor.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, purchases.ErrSignatureInvalid):
		writeError(w, http.StatusBadRequest, codeSignatureInvalid, "webhook signature verification failed")
		return
	case err != nil:
		h.Log.Error("webhook failed, requesting redelivery", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	if out == webhook.OutcomeTestEvent {
		writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": out})
}
