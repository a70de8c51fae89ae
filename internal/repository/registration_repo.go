package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felicity-events/registration-core/internal/database"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

// WithTx runs fn inside a transaction shared by all repositories.
func (r *RegistrationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, r.pool, fn)
}

const regColumns = `id, event_id, user_id, user_name, user_email,
participant_type, status, payment_status, form_responses, variant_id,
merch_size, merch_color, quantity, payment_reviewed_by,
payment_reviewed_at, payment_note, ticket_id, attended_at,
registered_at, updated_at`

// Create inserts a registration. The partial unique index on
// (event_id, user_id) is the authoritative duplicate guard: a violation
// surfaces as model.ErrAlreadyRegistered regardless of any earlier check.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	var variantID, size, color *string
	var quantity *int
	if reg.Merch != nil {
		variantID, size, color = &reg.Merch.VariantID, &reg.Merch.Size, &reg.Merch.Color
		quantity = &reg.Merch.Quantity
	}

	_, err := database.Exec(ctx, r.pool,
		`INSERT INTO registrations (id, event_id, user_id, user_name, user_email,
		   participant_type, status, payment_status, form_responses, variant_id,
		   merch_size, merch_color, quantity, payment_note, registered_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		reg.ID, reg.EventID, reg.UserID, reg.UserName, reg.UserEmail,
		reg.ParticipantType, reg.Status, reg.PaymentStatus, reg.FormResponses,
		variantID, size, color, quantity, reg.PaymentNote,
		reg.RegisteredAt, reg.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return model.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns one registration or model.ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return r.get(ctx, `SELECT `+regColumns+` FROM registrations WHERE id = $1`, id)
}

// GetByIDForUpdate locks the registration row, serializing payment review
// against concurrent reviews of the same order.
func (r *RegistrationRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	return r.get(ctx, `SELECT `+regColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
}

// FindByEventAndUser returns the live registration for a pair, or nil.
// Rejected orders are not considered live.
func (r *RegistrationRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	reg, err := r.get(ctx,
		`SELECT `+regColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status <> 'rejected'`,
		eventID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return reg, err
}

// FindByTicket returns the registration bound to a ticket within one
// event. Tickets of other events are indistinguishable from unknown ones.
func (r *RegistrationRepository) FindByTicket(ctx context.Context, eventID, ticketID string) (*model.Registration, error) {
	return r.get(ctx,
		`SELECT `+regColumns+` FROM registrations WHERE event_id = $1 AND ticket_id = $2`,
		eventID, ticketID)
}

func (r *RegistrationRepository) get(ctx context.Context, query string, args ...any) (*model.Registration, error) {
	row := database.QueryRow(ctx, r.pool, query, args...)
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// SetTicketID attaches an issued ticket to its registration.
func (r *RegistrationRepository) SetTicketID(ctx context.Context, id, ticketID string) error {
	tag, err := database.Exec(ctx, r.pool,
		`UPDATE registrations SET ticket_id = $2, updated_at = NOW() WHERE id = $1`,
		id, ticketID,
	)
	if err != nil {
		return fmt.Errorf("set ticket id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetStatus writes the status unconditionally (manual override,
// cancellation after its own checks). Last write wins.
func (r *RegistrationRepository) SetStatus(ctx context.Context, id string, status model.RegistrationStatus, attendedAt *time.Time) error {
	tag, err := database.Exec(ctx, r.pool,
		`UPDATE registrations SET status = $2, attended_at = $3, updated_at = NOW() WHERE id = $1`,
		id, status, attendedAt,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// MarkAttended flips registered -> attended. The status predicate makes
// the transition a compare-and-swap: of N concurrent scans exactly one
// sees true.
func (r *RegistrationRepository) MarkAttended(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := database.Exec(ctx, r.pool,
		`UPDATE registrations SET status = 'attended', attended_at = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'registered'`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("mark attended: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordPaymentReview writes the payment decision and resulting status.
func (r *RegistrationRepository) RecordPaymentReview(ctx context.Context, reg *model.Registration) error {
	tag, err := database.Exec(ctx, r.pool,
		`UPDATE registrations SET
		   status = $2, payment_status = $3, payment_reviewed_by = $4,
		   payment_reviewed_at = $5, payment_note = $6, updated_at = NOW()
		 WHERE id = $1`,
		reg.ID, reg.Status, reg.PaymentStatus, nullable(reg.ReviewedBy),
		reg.ReviewedAt, reg.PaymentNote,
	)
	if err != nil {
		return fmt.Errorf("record payment review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListByEvent returns the event roster, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.listWhere(ctx, `event_id = $1`, `registered_at ASC`, eventID)
}

// ListByUser returns a participant's registrations, newest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	return r.listWhere(ctx, `user_id = $1`, `registered_at DESC`, userID)
}

// ListPayments returns orders awaiting or past payment review.
func (r *RegistrationRepository) ListPayments(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.listWhere(ctx, `event_id = $1 AND payment_status <> 'not_required'`, `registered_at DESC`, eventID)
}

func (r *RegistrationRepository) listWhere(ctx context.Context, where, order string, args ...any) ([]model.Registration, error) {
	rows, err := database.Query(ctx, r.pool,
		`SELECT `+regColumns+` FROM registrations WHERE `+where+` ORDER BY `+order,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	var variantID, size, color, ticketID, reviewedBy *string
	var quantity *int
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.UserName, &reg.UserEmail,
		&reg.ParticipantType, &reg.Status, &reg.PaymentStatus, &reg.FormResponses,
		&variantID, &size, &color, &quantity, &reviewedBy,
		&reg.ReviewedAt, &reg.PaymentNote, &ticketID, &reg.AttendedAt,
		&reg.RegisteredAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if variantID != nil {
		reg.Merch = &model.MerchSelection{VariantID: *variantID}
		if size != nil {
			reg.Merch.Size = *size
		}
		if color != nil {
			reg.Merch.Color = *color
		}
		if quantity != nil {
			reg.Merch.Quantity = *quantity
		}
	}
	if ticketID != nil {
		reg.TicketID = *ticketID
	}
	if reviewedBy != nil {
		reg.ReviewedBy = *reviewedBy
	}
	return &reg, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
