package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type IntentReader interface {
	GetByCorrelationKey(ctx context.Context, correlationKey string) (purchases.Intent, error)
}

// IntentsHandler answers status polls from the success pages.
type IntentsHandler struct {
	Repo  IntentReader
	Redis *redis.Client
	Log   *slog.Logger
}

type IntentStatusResp struct {
	CorrelationKey string                  `json:"correlation_key"`
	Kind           purchases.Kind          `json:"kind"`
	Status         purchases.Status        `json:"status"`
	PaymentStatus  purchases.PaymentStatus `json:"payment_status"`
	TotalCents     int                     `json:"total_cents"`
	Currency       string                  `json:"currency"`
	OrderNumber    string                  `json:"order_number,omitempty"`
	TrackID        int                     `json:"track_id,omitempty"`
	PaidAt         *time.Time              `json:"paid_at,omitempty"`
}

func (h *IntentsHandler) Register(r chi.Router) {
	r.Get("/intents/{correlationKey}", h.get)
}

func (h *IntentsHandler) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "correlationKey")
	if key == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "missing correlation key")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf(redisx.KeyIntentStatus, key)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, cacheKey).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	in, err := h.Repo.GetByCorrelationKey(ctx, key)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	resp := IntentStatusResp{
		CorrelationKey: in.CorrelationKey,
		Kind:           in.Kind,
		Status:         in.Status,
		PaymentStatus:  in.PaymentStatus,
		TotalCents:     in.TotalCents,
		Currency:       in.Currency,
		PaidAt:         in.PaidAt,
	}
	if in.Order != nil {
		resp.OrderNumber = in.Order.OrderNumber
	}
	if in.Music != nil {
		resp.TrackID = in.Music.TrackID
	}

	b, err := json.Marshal(resp)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	// pending answers change as soon as the webhook lands, so only settled ones are cached
	if h.Redis != nil && in.PaymentStatus != purchases.PaymentPending {
		_ = h.Redis.Set(ctx, cacheKey, b, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, json.RawMessage(b))
}
