package handler

import (
	"net/http"

	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/go-chi/chi/v5"
)

// TicketHandler exposes ticket lookup.
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler constructs a TicketHandler.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Get handles GET /tickets/{ticketId}
// Participants may only fetch their own tickets.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.tickets.GetForUser(r.Context(), chi.URLParam(r, "ticketId"), principal(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ListMine handles GET /tickets/user/my
func (h *TicketHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListByUser(r.Context(), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}
