// Package service implements the business logic of the registration core:
// the admission pipeline, the gated event lifecycle, payment review,
// ticket issuance and check-in. Services depend on narrow store
// interfaces implemented by the repository layer, so the concurrency-
// sensitive paths are testable against in-memory fakes.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/repository"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// TicketStore is the persistence needed to issue and look up tickets.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByTicketID(ctx context.Context, ticketID string) (*model.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]model.Ticket, error)
}

// TicketService issues unique tickets and builds their QR payloads.
type TicketService struct {
	store TicketStore
	clock clock.Clock
}

// NewTicketService constructs a TicketService.
func NewTicketService(store TicketStore, clk clock.Clock) *TicketService {
	return &TicketService{store: store, clock: clk}
}

// qrSize is the pixel width of the generated QR PNG.
const qrSize = 256

// issueAttempts bounds regeneration on ticket-id collisions. The id space
// is large enough that exhausting this is an infrastructure fault.
const issueAttempts = 5

// Issue generates a globally unique ticket for an admitted registration,
// persists it and returns it. Issuing twice for the same registration is a
// programming error and fails with model.ErrAlreadyIssued; it never
// silently creates a second ticket.
func (s *TicketService) Issue(ctx context.Context, registrationID, eventID, userID, eventName, participantName string) (*model.Ticket, error) {
	for attempt := 0; attempt < issueAttempts; attempt++ {
		ticketID := NewTicketID()

		payload, err := json.Marshal(model.QRPayload{
			TicketID:    ticketID,
			EventID:     eventID,
			UserID:      userID,
			EventName:   eventName,
			Participant: participantName,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal qr payload: %w", err)
		}

		png, err := qrcode.Encode(string(payload), qrcode.Medium, qrSize)
		if err != nil {
			return nil, fmt.Errorf("encode qr code: %w", err)
		}

		ticket := &model.Ticket{
			ID:             uuid.NewString(),
			TicketID:       ticketID,
			RegistrationID: registrationID,
			EventID:        eventID,
			UserID:         userID,
			QRCode:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			CreatedAt:      s.clock.Now(),
		}

		err = s.store.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if errors.Is(err, repository.ErrTicketIDCollision) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("ticket id space exhausted after %d attempts", issueAttempts)
}

// GetForUser returns a ticket, restricting participants to their own.
// Organizers may look up any ticket.
func (s *TicketService) GetForUser(ctx context.Context, ticketID string, caller model.Principal) (*model.Ticket, error) {
	ticket, err := s.store.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if caller.Role == "participant" && ticket.UserID != caller.UserID {
		return nil, model.ErrForbidden
	}
	return ticket, nil
}

// ListByUser returns the caller's tickets, newest first.
func (s *TicketService) ListByUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	return s.store.ListByUser(ctx, userID)
}

// NewTicketID builds a human-presentable ticket identifier of the form
// TKT-XXXXXXXX, suitable for manual entry at a gate. Global uniqueness is
// enforced by the tickets.ticket_id unique index; the issuer regenerates
// on the rare collision.
func NewTicketID() string {
	return "TKT-" + strings.ToUpper(uuid.NewString()[:8])
}
