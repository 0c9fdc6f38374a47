package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/checkout"
	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	CreateBooking(ctx context.Context, req checkout.BookingRequest) (checkout.Result, error)
	CreateOrder(ctx context.Context, req checkout.OrderRequest) (checkout.Result, error)
	CreateAlbum(ctx context.Context, req checkout.AlbumRequest) (checkout.Result, error)
	CreateTrack(ctx context.Context, req checkout.TrackRequest) (checkout.Result, error)
}

type CheckoutHandler struct {
	Service CheckoutService
	Log     *slog.Logger
}

type CustomerFields struct {
	CustomerName  string `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=40"`
}

func (c CustomerFields) customer() purchases.Customer {
	return purchases.Customer{
		Name:  strings.TrimSpace(c.CustomerName),
		Email: strings.TrimSpace(c.CustomerEmail),
		Phone: strings.TrimSpace(c.CustomerPhone),
	}
}

type BookingReq struct {
	EventID         int64  `json:"event_id" validate:"required,gt=0"`
	NumberOfSpots   int    `json:"number_of_spots" validate:"required,min=1,max=100"`
	SpecialRequests string `json:"special_requests" validate:"max=2000"`
	CustomerFields
}

type OrderItemReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=1000"`
}

type OrderReq struct {
	Items           []OrderItemReq `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress string         `json:"shipping_address" validate:"max=1000"`
	CustomerFields
}

type AlbumReq struct {
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	SessionID     string `json:"session_id" validate:"max=128"`
}

type TrackReq struct {
	TrackID int `json:"track_id" validate:"required,min=1"`
	AlbumReq
}

type CheckoutResp struct {
	RedirectURL        string `json:"redirect_url"`
	ProcessorSessionID string `json:"processor_session_id"`
	CorrelationKey     string `json:"correlation_key"`
	OrderNumber        string `json:"order_number,omitempty"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/booking", h.booking)
		r.Post("/order", h.order)
		r.Post("/album", h.album)
		r.Post("/track", h.track)
	})
}

func (h *CheckoutHandler) booking(w http.ResponseWriter, r *http.Request) {
	var req BookingReq
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (checkout.Result, error) {
		return h.Service.CreateBooking(ctx, checkout.BookingRequest{
			EventID:         req.EventID,
			Seats:           req.NumberOfSpots,
			Customer:        req.customer(),
			SpecialRequests: req.SpecialRequests,
			Origin:          r.Header.Get("Origin"),
		})
	})
}

func (h *CheckoutHandler) order(w http.ResponseWriter, r *http.Request) {
	var req OrderReq
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lines := make([]checkout.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, checkout.OrderLine{ProductID: it.ProductID, Qty: it.Quantity})
	}
	h.respond(w, r, func(ctx context.Context) (checkout.Result, error) {
		return h.Service.CreateOrder(ctx, checkout.OrderRequest{
			Items:           lines,
			Customer:        req.customer(),
			ShippingAddress: req.ShippingAddress,
			Origin:          r.Header.Get("Origin"),
		})
	})
}

func (h *CheckoutHandler) album(w http.ResponseWriter, r *http.Request) {
	var req AlbumReq
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (checkout.Result, error) {
		return h.Service.CreateAlbum(ctx, checkout.AlbumRequest{
			CustomerEmail:   req.CustomerEmail,
			ClientSessionID: req.SessionID,
			Origin:          r.Header.Get("Origin"),
		})
	})
}

func (h *CheckoutHandler) track(w http.ResponseWriter, r *http.Request) {
	var req TrackReq
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.respond(w, r, func(ctx context.Context) (checkout.Result, error) {
		return h.Service.CreateTrack(ctx, checkout.TrackRequest{
			TrackID:         req.TrackID,
			CustomerEmail:   req.CustomerEmail,
			ClientSessionID: req.SessionID,
			Origin:          r.Header.Get("Origin"),
		})
	})
}

func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request, call func(context.Context) (checkout.Result, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := call(ctx)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResp{
		RedirectURL:        res.RedirectURL,
		ProcessorSessionID: res.ProcessorSessionID,
		CorrelationKey:     res.CorrelationKey,
		OrderNumber:        res.OrderNumber,
	})
}
