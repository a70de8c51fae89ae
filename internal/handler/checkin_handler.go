package handler

import (
	"encoding/csv"
	"net/http"

	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/service"
	"github.com/go-chi/chi/v5"
)

// CheckInHandler exposes gate scanning and attendance tracking to
// organizers. Every route first resolves the event through ownership so a
// foreign event looks like a missing one.
type CheckInHandler struct {
	checkins *service.CheckInService
	events   *service.EventService
}

// NewCheckInHandler constructs a CheckInHandler.
func NewCheckInHandler(checkins *service.CheckInService, events *service.EventService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins, events: events}
}

func (h *CheckInHandler) ownedEvent(w http.ResponseWriter, r *http.Request) *model.Event {
	event, err := h.events.GetOwnedEvent(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return nil
	}
	return event
}

type scanRequest struct {
	TicketID string `json:"ticket_id"`
}

// Scan handles POST /organizers/events/{id}/scan
// Marks attendance for a scanned ticket. Duplicate scans come back with
// the original check-in time; unknown tickets fail closed.
func (h *CheckInHandler) Scan(w http.ResponseWriter, r *http.Request) {
	event := h.ownedEvent(w, r)
	if event == nil {
		return
	}

	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TicketID == "" {
		writeError(w, http.StatusBadRequest, "ticket_id is required")
		return
	}

	result, err := h.checkins.Scan(r.Context(), event.ID, req.TicketID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Outcome != model.ScanSuccess {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// Attendance handles GET /organizers/events/{id}/attendance
func (h *CheckInHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	event := h.ownedEvent(w, r)
	if event == nil {
		return
	}

	summary, err := h.checkins.Attendance(r.Context(), event.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type manualAttendanceRequest struct {
	RegistrationID string `json:"registration_id"`
	Action         string `json:"action"`
}

// Manual handles PUT /organizers/events/{id}/manual-attendance
// Administrative mark/unmark that bypasses ticket lookup.
func (h *CheckInHandler) Manual(w http.ResponseWriter, r *http.Request) {
	event := h.ownedEvent(w, r)
	if event == nil {
		return
	}

	var req manualAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.checkins.ManualAttendance(r.Context(), event.ID, req.RegistrationID, service.ManualAction(req.Action))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ExportAttendance handles GET /organizers/events/{id}/attendance/export
// Streams the roster as CSV for offline reconciliation.
func (h *CheckInHandler) ExportAttendance(w http.ResponseWriter, r *http.Request) {
	event := h.ownedEvent(w, r)
	if event == nil {
		return
	}

	summary, err := h.checkins.Attendance(r.Context(), event.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+event.Name+`_attendance.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Email", "Ticket ID", "Status", "Scanned At"})
	writeRow := func(reg model.Registration) {
		scannedAt := "Not scanned"
		if reg.AttendedAt != nil {
			scannedAt = reg.AttendedAt.Format("2006-01-02 15:04:05")
		}
		_ = cw.Write([]string{reg.UserName, reg.UserEmail, reg.TicketID, string(reg.Status), scannedAt})
	}
	for _, reg := range summary.Attended {
		writeRow(reg)
	}
	for _, reg := range summary.Registered {
		writeRow(reg)
	}
	cw.Flush()
}
