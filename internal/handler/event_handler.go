package handler

import (
	"net/http"
	"time"

	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/repository"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/go-chi/chi/v5"
)

// EventHandler exposes event browsing and the organizer lifecycle.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// Browse handles GET /events
// Lists published/ongoing events with optional type, eligibility, search
// and date filters.
func (h *EventHandler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.BrowseFilter{
		Search: q.Get("search"),
		Limit:  20,
	}
	if t := q.Get("type"); t != "" && t != "all" {
		filter.EventType = model.EventType(t)
	}
	if el := q.Get("eligibility"); el != "" {
		filter.Eligibility = model.Eligibility(el)
	}
	if from := q.Get("dateFrom"); from != "" {
		if ts, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &ts
		}
	}
	if to := q.Get("dateTo"); to != "" {
		if ts, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &ts
		}
	}

	events, err := h.events.BrowseEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

// Get handles GET /events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type createEventRequest struct {
	Name                 string               `json:"name"`
	Description          string               `json:"description"`
	EventType            model.EventType      `json:"event_type"`
	Eligibility          model.Eligibility    `json:"eligibility"`
	RegistrationDeadline time.Time            `json:"registration_deadline"`
	StartDate            time.Time            `json:"start_date"`
	EndDate              time.Time            `json:"end_date"`
	RegistrationLimit    int                  `json:"registration_limit"`
	RegistrationFee      int                  `json:"registration_fee"`
	Tags                 []string             `json:"tags"`
	CustomForm           []model.FormField    `json:"custom_form"`
	MerchItems           []model.MerchVariant `json:"merch_items"`
}

// Create handles POST /organizers/events
// Creates a new draft event owned by the calling organizer.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), principal(r).UserID, &model.Event{
		Name:                 req.Name,
		Description:          req.Description,
		EventType:            req.EventType,
		Eligibility:          req.Eligibility,
		RegistrationDeadline: req.RegistrationDeadline,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		RegistrationLimit:    req.RegistrationLimit,
		RegistrationFee:      req.RegistrationFee,
		Tags:                 req.Tags,
		CustomForm:           req.CustomForm,
		MerchItems:           req.MerchItems,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Update handles PUT /organizers/events/{id}
// Applies a state-gated edit; any disallowed field rejects the whole
// update.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update model.EventUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), principal(r).UserID, update)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListMine handles GET /organizers/my-events
func (h *EventHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListMyEvents(r.Context(), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetMine handles GET /organizers/events/{id}
func (h *EventHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetOwnedEvent(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
