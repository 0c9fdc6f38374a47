package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// ReadyHandler serves /readyz from a set of named dependency checks.
type ReadyHandler struct {
	Checks map[string]Check
}

func (h *ReadyHandler) Register(r chi.Router) {
	r.Get("/readyz", h.ready)
}

func (h *ReadyHandler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, out := http.StatusOK, make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status, out[name] = http.StatusServiceUnavailable, err.Error()
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, out)
}
