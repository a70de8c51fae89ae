package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/model"
)

// CheckInStore is the persistence the check-in flow needs. MarkAttended
// must be a conditional update keyed on the current status so concurrent
// scans of one ticket admit exactly once.
type CheckInStore interface {
	FindByTicket(ctx context.Context, eventID, ticketID string) (*model.Registration, error)
	MarkAttended(ctx context.Context, id string, at time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	SetStatus(ctx context.Context, id string, status model.RegistrationStatus, attendedAt *time.Time) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
}

// CheckInService marks attendance via idempotent ticket scans and manual
// overrides.
type CheckInService struct {
	store CheckInStore
	clock clock.Clock
}

// NewCheckInService constructs a CheckInService.
func NewCheckInService(store CheckInStore, clk clock.Clock) *CheckInService {
	return &CheckInService{store: store, clock: clk}
}

// Scan resolves a ticket within one event and marks the registration
// attended. Outcomes are results, not errors: unknown tickets fail closed
// as InvalidTicket (a ticket for a different event is indistinguishable
// from a nonexistent one), repeat scans report the original check-in so
// gate staff can explain the duplicate.
func (s *CheckInService) Scan(ctx context.Context, eventID, ticketID string) (*model.ScanResult, error) {
	reg, err := s.store.FindByTicket(ctx, eventID, ticketID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &model.ScanResult{Outcome: model.ScanInvalidTicket, TicketID: ticketID}, nil
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	switch reg.Status {
	case model.StatusCancelled, model.StatusRejected:
		return &model.ScanResult{
			Outcome:         model.ScanNotAdmitted,
			TicketID:        ticketID,
			ParticipantName: reg.UserName,
		}, nil
	case model.StatusAttended:
		return s.duplicate(reg), nil
	}

	now := s.clock.Now()
	ok, err := s.store.MarkAttended(ctx, reg.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark attended: %w", err)
	}
	if !ok {
		// Lost the race: someone else scanned between our read and the
		// conditional update. Re-read for the original check-in time.
		current, err := s.store.GetByID(ctx, reg.ID)
		if err != nil {
			return nil, fmt.Errorf("reload registration: %w", err)
		}
		if current.Status == model.StatusAttended {
			return s.duplicate(current), nil
		}
		return &model.ScanResult{
			Outcome:         model.ScanNotAdmitted,
			TicketID:        ticketID,
			ParticipantName: current.UserName,
		}, nil
	}

	return &model.ScanResult{
		Outcome:         model.ScanSuccess,
		TicketID:        ticketID,
		ParticipantName: reg.UserName,
		ParticipantMail: reg.UserEmail,
		AttendedAt:      &now,
	}, nil
}

func (s *CheckInService) duplicate(reg *model.Registration) *model.ScanResult {
	return &model.ScanResult{
		Outcome:         model.ScanDuplicate,
		TicketID:        reg.TicketID,
		ParticipantName: reg.UserName,
		ParticipantMail: reg.UserEmail,
		AttendedAt:      reg.AttendedAt,
	}
}

// ManualAction is an organizer attendance override.
type ManualAction string

const (
	ManualMark   ManualAction = "mark"
	ManualUnmark ManualAction = "unmark"
)

// ManualAttendance flips a known registration between registered and
// attended without a ticket. It is an authorized administrative action:
// plain last-write-wins, no scan idempotency involved. The registration
// must belong to the given event; cancelled and rejected registrations
// cannot be marked.
func (s *CheckInService) ManualAttendance(ctx context.Context, eventID, registrationID string, action ManualAction) (*model.Registration, error) {
	reg, err := s.store.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.EventID != eventID {
		return nil, model.ErrNotFound
	}
	if reg.Status == model.StatusCancelled || reg.Status == model.StatusRejected {
		return nil, model.ErrNotAdmitted
	}

	switch action {
	case ManualMark:
		now := s.clock.Now()
		reg.Status = model.StatusAttended
		reg.AttendedAt = &now
	case ManualUnmark:
		reg.Status = model.StatusRegistered
		reg.AttendedAt = nil
	default:
		return nil, model.NewFieldError("action", "must be mark or unmark")
	}

	if err := s.store.SetStatus(ctx, reg.ID, reg.Status, reg.AttendedAt); err != nil {
		return nil, err
	}
	return reg, nil
}

// AttendanceSummary is the organizer gate dashboard.
type AttendanceSummary struct {
	Total      int                  `json:"total"`
	Scanned    int                  `json:"scanned_count"`
	NotScanned int                  `json:"not_scanned_count"`
	Attended   []model.Registration `json:"scanned"`
	Registered []model.Registration `json:"not_scanned"`
}

// Attendance summarizes who has checked in. Cancelled and rejected
// registrations are excluded.
func (s *CheckInService) Attendance(ctx context.Context, eventID string) (*AttendanceSummary, error) {
	regs, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	summary := &AttendanceSummary{
		Attended:   []model.Registration{},
		Registered: []model.Registration{},
	}
	for _, reg := range regs {
		switch reg.Status {
		case model.StatusAttended:
			summary.Attended = append(summary.Attended, reg)
		case model.StatusRegistered:
			summary.Registered = append(summary.Registered, reg)
		default:
			continue
		}
		summary.Total++
	}
	summary.Scanned = len(summary.Attended)
	summary.NotScanned = len(summary.Registered)
	return summary, nil
}
