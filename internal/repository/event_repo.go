// Package repository implements all database queries for the registration
// core. It uses pgx directly (no ORM); multi-step writes run inside a
// transaction carried in the context so repositories compose into one
// atomic operation.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felicity-events/registration-core/internal/database"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles persistence for events and their variants.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// WithTx runs fn inside a transaction shared by all repositories.
func (r *EventRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, r.pool, fn)
}

const eventColumns = `id, name, description, event_type, eligibility,
registration_deadline, start_date, end_date, registration_limit,
registration_fee, organizer_id, tags, status, custom_form,
registration_count, created_at, updated_at`

// Create inserts the event along with its merch variants.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return database.WithTx(ctx, r.pool, func(ctx context.Context) error {
		_, err := database.Exec(ctx, r.pool,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			e.ID, e.Name, e.Description, e.EventType, e.Eligibility,
			e.RegistrationDeadline, e.StartDate, e.EndDate, e.RegistrationLimit,
			e.RegistrationFee, e.OrganizerID, e.Tags, e.Status, e.CustomForm,
			e.RegistrationCount, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return r.insertVariants(ctx, e.ID, e.MerchItems)
	})
}

// GetByID returns a single event with its variants, or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetOwned returns the event only when it belongs to the given organizer.
// A foreign event is indistinguishable from a missing one.
func (r *EventRepository) GetOwned(ctx context.Context, id, organizerID string) (*model.Event, error) {
	return r.get(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND organizer_id = $2`,
		id, organizerID)
}

// GetOwnedForUpdate locks the owned event row for the duration of the
// enclosing transaction, serializing gated edits against admissions.
func (r *EventRepository) GetOwnedForUpdate(ctx context.Context, id, organizerID string) (*model.Event, error) {
	return r.get(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND organizer_id = $2 FOR UPDATE`,
		id, organizerID)
}

func (r *EventRepository) get(ctx context.Context, query string, args ...any) (*model.Event, error) {
	var e model.Event
	err := database.QueryRow(ctx, r.pool, query, args...).Scan(
		&e.ID, &e.Name, &e.Description, &e.EventType, &e.Eligibility,
		&e.RegistrationDeadline, &e.StartDate, &e.EndDate, &e.RegistrationLimit,
		&e.RegistrationFee, &e.OrganizerID, &e.Tags, &e.Status, &e.CustomForm,
		&e.RegistrationCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := r.loadVariants(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update writes back all mutable event fields and replaces the variant
// list. Callers hold the row lock via GetOwnedForUpdate.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	return database.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := database.Exec(ctx, r.pool,
			`UPDATE events SET
			   name = $2, description = $3, event_type = $4, eligibility = $5,
			   registration_deadline = $6, start_date = $7, end_date = $8,
			   registration_limit = $9, registration_fee = $10, tags = $11,
			   status = $12, custom_form = $13, updated_at = $14
			 WHERE id = $1`,
			e.ID, e.Name, e.Description, e.EventType, e.Eligibility,
			e.RegistrationDeadline, e.StartDate, e.EndDate,
			e.RegistrationLimit, e.RegistrationFee, e.Tags,
			e.Status, e.CustomForm, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}
		if _, err := database.Exec(ctx, r.pool,
			`DELETE FROM merch_variants WHERE event_id = $1`, e.ID); err != nil {
			return fmt.Errorf("clear variants: %w", err)
		}
		return r.insertVariants(ctx, e.ID, e.MerchItems)
	})
}

// BrowseFilter narrows the public event listing.
type BrowseFilter struct {
	EventType   model.EventType
	Eligibility model.Eligibility
	Search      string
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

// ListPublished returns events open to participants (published or
// ongoing), newest first.
func (r *EventRepository) ListPublished(ctx context.Context, f BrowseFilter) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE status IN ('published', 'ongoing')`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EventType != "" {
		query += ` AND event_type = ` + arg(f.EventType)
	}
	if f.Eligibility != "" && f.Eligibility != model.EligibilityAll {
		query += ` AND eligibility = ` + arg(f.Eligibility)
	}
	if f.Search != "" {
		pattern := "%" + strings.ReplaceAll(f.Search, "%", `\%`) + "%"
		query += ` AND (name ILIKE ` + arg(pattern) + ` OR EXISTS (
			SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE ` + fmt.Sprintf("$%d", len(args)) + `))`
	}
	if f.DateFrom != nil {
		query += ` AND start_date >= ` + arg(*f.DateFrom)
	}
	if f.DateTo != nil {
		query += ` AND start_date <= ` + arg(*f.DateTo)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	return r.list(ctx, query, args...)
}

// ListByOrganizer returns all events owned by one organizer.
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error) {
	return r.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY created_at DESC`,
		organizerID)
}

func (r *EventRepository) list(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := database.Query(ctx, r.pool, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.EventType, &e.Eligibility,
			&e.RegistrationDeadline, &e.StartDate, &e.EndDate, &e.RegistrationLimit,
			&e.RegistrationFee, &e.OrganizerID, &e.Tags, &e.Status, &e.CustomForm,
			&e.RegistrationCount, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		if err := r.loadVariants(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (r *EventRepository) loadVariants(ctx context.Context, e *model.Event) error {
	rows, err := database.Query(ctx, r.pool,
		`SELECT id, size, color, stock, purchase_limit, position
		 FROM merch_variants WHERE event_id = $1 ORDER BY position, id`,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.MerchVariant
		if err := rows.Scan(&v.ID, &v.Size, &v.Color, &v.Stock, &v.PurchaseLimit, &v.Position); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		e.MerchItems = append(e.MerchItems, v)
	}
	return rows.Err()
}

func (r *EventRepository) insertVariants(ctx context.Context, eventID string, variants []model.MerchVariant) error {
	for _, v := range variants {
		if _, err := database.Exec(ctx, r.pool,
			`INSERT INTO merch_variants (id, event_id, size, color, stock, purchase_limit, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			v.ID, eventID, v.Size, v.Color, v.Stock, v.PurchaseLimit, v.Position,
		); err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	return nil
}
