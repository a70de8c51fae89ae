package handler

import (
	"net/http"

	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/go-chi/chi/v5"
)

// PaymentHandler exposes the payment approval workflow to organizers.
type PaymentHandler struct {
	payments *service.PaymentService
	events   *service.EventService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, events *service.EventService) *PaymentHandler {
	return &PaymentHandler{payments: payments, events: events}
}

// ListOrders handles GET /organizers/events/{id}/payments
func (h *PaymentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetOwnedEvent(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	orders, err := h.payments.ListOrders(r.Context(), event.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, orders)
}

type reviewRequest struct {
	Note string `json:"note,omitempty"`
}

// Approve handles PUT /organizers/payments/{regId}/approve
// Approves a pending order and issues its ticket in one atomic step.
func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.payments.Approve(r.Context(), chi.URLParam(r, "regId"), principal(r).UserID, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"registration": result.Registration,
		"ticket": ticketSummary{
			TicketID: result.Ticket.TicketID,
			QRCode:   result.Ticket.QRCode,
		},
	})
}

// Reject handles PUT /organizers/payments/{regId}/reject
// Rejects a pending order and returns its stock to the pool.
func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.payments.Reject(r.Context(), chi.URLParam(r, "regId"), principal(r).UserID, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}
