package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/purchases"
)

const (
	codeInvalidRequestBody    = "invalid_request_body"
	codeValidation            = "validation_error"
	codeNotFound              = "not_found"
	codeCapacityExceeded      = "capacity_exceeded"
	codeInsufficientInventory = "insufficient_inventory"
	codeProductInactive       = "product_inactive"
	codeEventClosed           = "event_closed"
	codeProcessorUnavailable  = "processor_unavailable"
	codeSignatureInvalid      = "signature_invalid"
	codePayloadTooLarge       = "payload_too_large"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{purchases.ErrValidation, http.StatusBadRequest, codeValidation},
	{purchases.ErrSignatureInvalid, http.StatusBadRequest, codeSignatureInvalid},
	{purchases.ErrNotFound, http.StatusNotFound, codeNotFound},
	{purchases.ErrCapacityExceeded, http.StatusConflict, codeCapacityExceeded},
	{purchases.ErrInsufficientInventory, http.StatusConflict, codeInsufficientInventory},
	{purchases.ErrProductInactive, http.StatusUnprocessableEntity, codeProductInactive},
	{purchases.ErrEventClosed, http.StatusUnprocessableEntity, codeEventClosed},
	{purchases.ErrProcessorUnavailable, http.StatusBadGateway, codeProcessorUnavailable},
}

// writeDomainError maps a service error to a status. Unknown errors are logged
// and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			if e.status >= 500 {
				log.Error("request failed", "path", r.URL.Path, "err", err)
				writeError(w, e.status, e.code, e.target.Error())
				return
			}
			writeError(w, e.status, e.code, err.Error())
			return
		}
	}
	log.Error("request failed", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
