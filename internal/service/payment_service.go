package service

import (
	"context"
	"fmt"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/ledger"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/notify"
)

// PaymentStore is the persistence the approval workflow needs.
type PaymentStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetByIDForUpdate(ctx context.Context, id string) (*model.Registration, error)
	RecordPaymentReview(ctx context.Context, reg *model.Registration) error
	SetTicketID(ctx context.Context, id, ticketID string) error
	ListPayments(ctx context.Context, eventID string) ([]model.Registration, error)
}

// PaymentService runs the approval sub-workflow gating ticket issuance
// for merchandise orders. pending -> approved and pending -> rejected are
// both terminal, and only a live (registered) order is reviewable: a
// cancelled order already returned its seat and stock.
type PaymentService struct {
	store    PaymentStore
	events   EventGetter
	ledger   ledger.Ledger
	tickets  TicketIssuer
	notifier notify.Notifier
	clock    clock.Clock
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(
	store PaymentStore,
	events EventGetter,
	led ledger.Ledger,
	tickets TicketIssuer,
	notifier notify.Notifier,
	clk clock.Clock,
) *PaymentService {
	return &PaymentService{
		store:    store,
		events:   events,
		ledger:   led,
		tickets:  tickets,
		notifier: notifier,
		clock:    clk,
	}
}

// ApproveResult couples the approved order with its freshly issued ticket.
type ApproveResult struct {
	Registration *model.Registration
	Ticket       *model.Ticket
}

// Approve marks a pending order approved and issues its ticket. Issuance
// and the status update commit as one step: an approved order without a
// ticket can never be observed.
func (s *PaymentService) Approve(ctx context.Context, registrationID, reviewerID, note string) (*ApproveResult, error) {
	var result ApproveResult

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.store.GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}
		if reg.Status != model.StatusRegistered || reg.PaymentStatus != model.PaymentPending {
			return model.ErrPaymentNotPending
		}

		event, err := s.events.GetByID(ctx, reg.EventID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		reg.PaymentStatus = model.PaymentApproved
		reg.Status = model.StatusRegistered
		reg.ReviewedBy = reviewerID
		reg.ReviewedAt = &now
		reg.PaymentNote = note

		ticket, err := s.tickets.Issue(ctx, reg.ID, reg.EventID, reg.UserID, event.Name, reg.UserName)
		if err != nil {
			return fmt.Errorf("issue ticket on approval: %w", err)
		}
		if err := s.store.RecordPaymentReview(ctx, reg); err != nil {
			return err
		}
		if err := s.store.SetTicketID(ctx, reg.ID, ticket.TicketID); err != nil {
			return err
		}

		reg.TicketID = ticket.TicketID
		result = ApproveResult{Registration: reg, Ticket: ticket}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Registration.UserEmail != "" {
		s.notifier.Notify(result.Registration.UserEmail, "Payment Approved - Order Confirmed",
			fmt.Sprintf(
				"<p>Hi %s,</p><p>Your payment was approved. Ticket ID: <strong>%s</strong>.</p><img src=%q alt=\"QR Code\" /><p>Show this QR code for pickup.</p>",
				result.Registration.UserName, result.Ticket.TicketID, result.Ticket.QRCode,
			))
	}
	return &result, nil
}

// Reject marks a pending order rejected and returns its reservations to
// the pool: the variant stock and the event seat both come back, and the
// rejected row drops out of the uniqueness guard so the participant may
// place a fresh order.
func (s *PaymentService) Reject(ctx context.Context, registrationID, reviewerID, note string) (*model.Registration, error) {
	var rejected *model.Registration

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.store.GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}
		if reg.Status != model.StatusRegistered || reg.PaymentStatus != model.PaymentPending {
			return model.ErrPaymentNotPending
		}

		now := s.clock.Now()
		if note == "" {
			note = "Payment rejected"
		}
		reg.PaymentStatus = model.PaymentRejected
		reg.Status = model.StatusRejected
		reg.ReviewedBy = reviewerID
		reg.ReviewedAt = &now
		reg.PaymentNote = note

		if err := s.store.RecordPaymentReview(ctx, reg); err != nil {
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

		rejected = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rejected.UserEmail != "" {
		s.notifier.Notify(rejected.UserEmail, "Payment Rejected",
			fmt.Sprintf(
				"<p>Hi %s,</p><p>Your payment was rejected.</p><p>Reason: %s</p><p>You can place a fresh order to try again.</p>",
				rejected.UserName, rejected.PaymentNote,
			))
	}
	return rejected, nil
}

// ListOrders returns all orders subject to payment review for an event.
func (s *PaymentService) ListOrders(ctx context.Context, eventID string) ([]model.Registration, error) {
	return s.store.ListPayments(ctx, eventID)
}
