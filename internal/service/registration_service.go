package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/ledger"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/notify"
	"github.com/google/uuid"
)

// RegistrationStore is the persistence the admission pipeline needs.
// Create must rely on a storage-level uniqueness guarantee for
// (event, user), not an application-level existence check.
type RegistrationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, reg *model.Registration) error
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Registration, error)
	SetTicketID(ctx context.Context, id, ticketID string) error
	SetStatus(ctx context.Context, id string, status model.RegistrationStatus, attendedAt *time.Time) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
}

// EventGetter resolves events for admission checks.
type EventGetter interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// TicketIssuer issues a unique ticket for an admitted registration.
type TicketIssuer interface {
	Issue(ctx context.Context, registrationID, eventID, userID, eventName, participantName string) (*model.Ticket, error)
}

// RegistrationService runs the admission-control pipeline.
type RegistrationService struct {
	store    RegistrationStore
	events   EventGetter
	ledger   ledger.Ledger
	tickets  TicketIssuer
	notifier notify.Notifier
	clock    clock.Clock
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	store RegistrationStore,
	events EventGetter,
	led ledger.Ledger,
	tickets TicketIssuer,
	notifier notify.Notifier,
	clk clock.Clock,
) *RegistrationService {
	return &RegistrationService{
		store:    store,
		events:   events,
		ledger:   led,
		tickets:  tickets,
		notifier: notifier,
		clock:    clk,
	}
}

// RegisterInput is one registration attempt.
type RegisterInput struct {
	EventID       string
	Caller        model.Principal
	VariantID     string
	Quantity      int
	FormResponses map[string]any
}

// RegisterResult is a successful admission. Ticket is nil for merchandise
// orders awaiting payment review.
type RegisterResult struct {
	Registration *model.Registration
	Ticket       *model.Ticket
}

// Register admits or rejects a registration attempt. Every rejection is a
// sentinel from the model package carrying the specific reason; capacity
// reservation happens before the registration record exists, inside one
// transaction, so concurrent attempts can never jointly overshoot a bound.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	now := s.clock.Now()
	var result RegisterResult

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		event, err := s.events.GetByID(ctx, in.EventID)
		if err != nil {
			return err
		}
		if !event.RegistrationOpen() {
			return model.ErrRegistrationClosed
		}
		if now.After(event.RegistrationDeadline) {
			return model.ErrDeadlinePassed
		}
		if event.Eligibility != model.EligibilityAll &&
			string(event.Eligibility) != in.Caller.ParticipantType {
			return model.ErrNotEligible
		}

		// Fast-path duplicate check; the unique index on create is the
		// authoritative guard against the check-then-create race.
		existing, err := s.store.FindByEventAndUser(ctx, in.EventID, in.Caller.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return model.ErrAlreadyRegistered
		}

		var merch *model.MerchSelection
		if event.EventType == model.EventMerchandise {
			merch, err = s.validateMerch(event, in)
			if err != nil {
				return err
			}
		}

		seatKey := ledger.SeatKey(event.ID)
		if err := s.ledger.Reserve(ctx, seatKey, 1); err != nil {
			if errors.Is(err, ledger.ErrDenied) {
				return model.ErrCapacityFull
			}
			return fmt.Errorf("reserve seat: %w", err)
		}

		if merch != nil {
			stockKey := ledger.StockKey(event.ID, merch.VariantID)
			if err := s.ledger.Reserve(ctx, stockKey, merch.Quantity); err != nil {
				// Compensate the seat reservation before rejecting.
				if errors.Is(err, ledger.ErrDenied) {
					if relErr := s.ledger.Release(ctx, seatKey, 1); relErr != nil {
						return fmt.Errorf("release seat after stock denial: %w", relErr)
					}
					return model.ErrOutOfStock
				}
				return fmt.Errorf("reserve stock: %w", err)
			}
		}

		paymentStatus := model.PaymentNotRequired
		if event.EventType == model.EventMerchandise {
			paymentStatus = model.PaymentPending
		}

		reg := &model.Registration{
			ID:              uuid.NewString(),
			EventID:         event.ID,
			UserID:          in.Caller.UserID,
			UserName:        in.Caller.Name,
			UserEmail:       in.Caller.Email,
			ParticipantType: in.Caller.ParticipantType,
			Status:          model.StatusRegistered,
			PaymentStatus:   paymentStatus,
			FormResponses:   in.FormResponses,
			Merch:           merch,
			RegisteredAt:    now,
			UpdatedAt:       now,
		}
		if err := s.store.Create(ctx, reg); err != nil {
			// Hand the reservations back on any create failure; under a
			// real transaction the rollback would do this anyway, and for
			// the duplicate race the caller gets AlreadyRegistered.
			_ = s.ledger.Release(ctx, seatKey, 1)
			if merch != nil {
				_ = s.ledger.Release(ctx, ledger.StockKey(event.ID, merch.VariantID), merch.Quantity)
			}
			return err
		}

		result.Registration = reg
		if paymentStatus == model.PaymentNotRequired {
			ticket, err := s.tickets.Issue(ctx, reg.ID, event.ID, in.Caller.UserID, event.Name, in.Caller.Name)
			if err != nil {
				return fmt.Errorf("issue ticket: %w", err)
			}
			if err := s.store.SetTicketID(ctx, reg.ID, ticket.TicketID); err != nil {
				return err
			}
			reg.TicketID = ticket.TicketID
			result.Ticket = ticket
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendConfirmation(&result, in.Caller)
	return &result, nil
}

func (s *RegistrationService) validateMerch(event *model.Event, in RegisterInput) (*model.MerchSelection, error) {
	if in.VariantID == "" {
		return nil, model.ErrVariantRequired
	}
	variant := event.Variant(in.VariantID)
	if variant == nil {
		return nil, model.ErrInvalidVariant
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	if qty > variant.PurchaseLimit {
		return nil, model.ErrPurchaseLimit
	}
	return &model.MerchSelection{
		VariantID: variant.ID,
		Size:      variant.Size,
		Color:     variant.Color,
		Quantity:  qty,
	}, nil
}

func (s *RegistrationService) sendConfirmation(result *RegisterResult, caller model.Principal) {
	if caller.Email == "" {
		return
	}
	if result.Ticket != nil {
		s.notifier.Notify(caller.Email, "Registration Confirmed",
			fmt.Sprintf(
				"<h2>Registration Confirmed!</h2><p>Hi %s,</p><p>Your ticket ID is <strong>%s</strong>. Keep it for entry.</p><img src=%q alt=\"QR Code\" />",
				caller.Name, result.Ticket.TicketID, result.Ticket.QRCode,
			))
		return
	}
	s.notifier.Notify(caller.Email, "Order Received",
		fmt.Sprintf(
			"<p>Hi %s,</p><p>Your order was received and is awaiting payment review. You will get your ticket once the payment is approved.</p>",
			caller.Name,
		))
}

// Cancel releases a registration's seat (and stock for merchandise
// orders) and marks it cancelled. Only the registered participant may
// cancel, and only while the registration is in the registered state.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, callerUserID string) (*model.Registration, error) {
	var cancelled *model.Registration

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.store.GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}
		if reg.UserID != callerUserID {
			return model.ErrForbidden
		}
		if reg.Status != model.StatusRegistered {
			return model.ErrNotCancellable
		}

		if err := s.store.SetStatus(ctx, reg.ID, model.StatusCancelled, nil); err != nil {
			return err
		}
		if err := s.ledger.Release(ctx, ledger.SeatKey(reg.EventID), 1); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		if reg.Merch != nil {
			if err := s.ledger.Release(ctx, ledger.StockKey(reg.EventID, reg.Merch.VariantID), reg.Merch.Quantity); err != nil {
				return fmt.Errorf("release stock: %w", err)
			}
		}

		reg.Status = model.StatusCancelled
		cancelled = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// MyRegistrations returns the caller's registrations, newest first.
func (s *RegistrationService) MyRegistrations(ctx context.Context, userID string) ([]model.Registration, error) {
	return s.store.ListByUser(ctx, userID)
}

// EventRoster returns all registrations for an event.
func (s *RegistrationService) EventRoster(ctx context.Context, eventID string) ([]model.Registration, error) {
	return s.store.ListByEvent(ctx, eventID)
}
