package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felicity-events/registration-core/internal/database"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTicketIDCollision is returned when a freshly generated ticket id is
// already taken. The issuer regenerates and retries; a collision on the
// registration id instead means a double issue and fails loudly.
var ErrTicketIDCollision = errors.New("ticket id already in use")

// TicketRepository handles persistence for issued tickets.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// Create inserts the ticket. The unique index on registration_id enforces
// the one-ticket-per-registration invariant at the storage level.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	_, err := database.Exec(ctx, r.pool,
		`INSERT INTO tickets (id, ticket_id, registration_id, event_id, user_id, qr_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.TicketID, t.RegistrationID, t.EventID, t.UserID, t.QRCode, t.CreatedAt,
	)
	if err != nil {
		switch constraint := database.ViolatedConstraint(err); {
		case strings.Contains(constraint, "registration_id"):
			return model.ErrAlreadyIssued
		case constraint != "":
			return ErrTicketIDCollision
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetByTicketID returns a ticket by its human-presentable id.
func (r *TicketRepository) GetByTicketID(ctx context.Context, ticketID string) (*model.Ticket, error) {
	var t model.Ticket
	err := database.QueryRow(ctx, r.pool,
		`SELECT id, ticket_id, registration_id, event_id, user_id, qr_code, created_at
		 FROM tickets WHERE ticket_id = $1`,
		ticketID,
	).Scan(&t.ID, &t.TicketID, &t.RegistrationID, &t.EventID, &t.UserID, &t.QRCode, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

// ListByUser returns a participant's tickets, newest first.
func (r *TicketRepository) ListByUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	rows, err := database.Query(ctx, r.pool,
		`SELECT id, ticket_id, registration_id, event_id, user_id, qr_code, created_at
		 FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.TicketID, &t.RegistrationID, &t.EventID, &t.UserID, &t.QRCode, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
