// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/felicity-events/registration-core/internal/model"
)

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusCodes maps business rejections to HTTP statuses. Anything not
// listed is an infrastructure failure and surfaces as a generic 500.
var statusCodes = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrNotFound, http.StatusNotFound, "not_found"},
	{model.ErrForbidden, http.StatusForbidden, "forbidden"},
	{model.ErrNotEligible, http.StatusForbidden, "not_eligible"},
	{model.ErrRegistrationClosed, http.StatusBadRequest, "registration_closed"},
	{model.ErrDeadlinePassed, http.StatusBadRequest, "deadline_passed"},
	{model.ErrVariantRequired, http.StatusBadRequest, "variant_required"},
	{model.ErrInvalidVariant, http.StatusBadRequest, "invalid_variant"},
	{model.ErrPurchaseLimit, http.StatusBadRequest, "purchase_limit_exceeded"},
	{model.ErrEventClosed, http.StatusBadRequest, "event_closed"},
	{model.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{model.ErrCapacityFull, http.StatusConflict, "capacity_full"},
	{model.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{model.ErrPaymentNotPending, http.StatusConflict, "payment_not_pending"},
	{model.ErrAlreadyIssued, http.StatusConflict, "already_issued"},
	{model.ErrNotCancellable, http.StatusConflict, "not_cancellable"},
	{model.ErrNotAdmitted, http.StatusConflict, "not_admitted"},
}

// respondError translates a service error into an HTTP response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range statusCodes {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, ErrorResponse{Error: err.Error(), Code: m.code})
			return
		}
	}

	var fieldErr *model.FieldError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fieldErr.Error(),
			Code:  "validation_failed",
			Field: fieldErr.Field,
		})
		return
	}

	log.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
