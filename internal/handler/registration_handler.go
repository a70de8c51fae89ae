package handler

import (
	"net/http"

	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/go-chi/chi/v5"
)

// RegistrationHandler exposes the admission pipeline.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	events        *service.EventService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService, events *service.EventService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, events: events}
}

type registerRequest struct {
	VariantID     string         `json:"variant_id,omitempty"`
	Quantity      int            `json:"quantity,omitempty"`
	FormResponses map[string]any `json:"form_responses,omitempty"`
}

type registerResponse struct {
	Registration *model.Registration `json:"registration"`
	Ticket       *ticketSummary      `json:"ticket,omitempty"`
}

type ticketSummary struct {
	TicketID string `json:"ticket_id"`
	QRCode   string `json:"qr_code"`
}

// Register handles POST /events/{id}/register
// Runs the full admission pipeline; merchandise orders come back
// ticketless, pending payment review.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.registrations.Register(r.Context(), service.RegisterInput{
		EventID:       chi.URLParam(r, "id"),
		Caller:        principal(r),
		VariantID:     req.VariantID,
		Quantity:      req.Quantity,
		FormResponses: req.FormResponses,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := registerResponse{Registration: result.Registration}
	if result.Ticket != nil {
		resp.Ticket = &ticketSummary{TicketID: result.Ticket.TicketID, QRCode: result.Ticket.QRCode}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Cancel handles POST /registrations/{id}/cancel
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Cancel(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ListMine handles GET /registrations/my
func (h *RegistrationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.MyRegistrations(r.Context(), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// Roster handles GET /organizers/events/{id}/registrations
// Returns every registration for an owned event.
func (h *RegistrationHandler) Roster(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetOwnedEvent(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	regs, err := h.registrations.EventRoster(r.Context(), event.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}
