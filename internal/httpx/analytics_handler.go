package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/attribution"
	"github.com/go-chi/chi/v5"
)

type AnalyticsService interface {
	LogPreview(ctx context.Context, e attribution.Engagement) (attribution.Engagement, error)
	LastEngagement(ctx context.Context, sessionID string) (*attribution.Engagement, error)
	DashboardStats(ctx context.Context) (attribution.Dashboard, error)
}

type AnalyticsHandler struct {
	Service AnalyticsService
	Log     *slog.Logger
}

type PreviewReq struct {
	TrackID    int    `json:"track_id" validate:"required,min=1"`
	TrackTitle string `json:"track_title" validate:"max=200"`
	Source     string `json:"source" validate:"required,oneof=homepage album_page"`
	SessionID  string `json:"session_id" validate:"required,max=128"`
}

func (h *AnalyticsHandler) Register(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/previews", h.logPreview)
		r.Get("/last-played", h.lastPlayed)
		r.Get("/dashboard", h.dashboard)
	})
}

func (h *AnalyticsHandler) logPreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewReq
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	e, err := h.Service.LogPreview(ctx, attribution.Engagement{
		TrackID:         req.TrackID,
		TrackTitle:      req.TrackTitle,
		Source:          attribution.Source(req.Source),
		ClientSessionID: req.SessionID,
	})
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *AnalyticsHandler) lastPlayed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	e, err := h.Service.LastEngagement(ctx, r.URL.Query().Get("session_id"))
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	// null when the session has not played anything
	writeJSON(w, http.StatusOK, e)
}

func (h *AnalyticsHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	d, err := h.Service.DashboardStats(ctx)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
