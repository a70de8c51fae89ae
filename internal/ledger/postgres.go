package ledger

import (
	"context"
	"fmt"

	"github.com/felicity-events/registration-core/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Ledger with single-statement conditional updates.
// The WHERE clause carries the bound check, so the test and the increment
// are one atomic step at the row level; two concurrent transactions
// serialize on the row lock and the loser sees the already-updated
// counter. When the caller runs inside a transaction (via database.WithTx)
// the reservation rolls back with it.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs the Postgres-backed ledger.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (l *Postgres) Reserve(ctx context.Context, key Key, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("reserve amount must be positive, got %d", amount)
	}

	if key.VariantID == "" {
		// limit 0 means unlimited.
		tag, err := database.Exec(ctx, l.pool,
			`UPDATE events
			 SET registration_count = registration_count + $2, updated_at = NOW()
			 WHERE id = $1
			   AND (registration_limit = 0 OR registration_count + $2 <= registration_limit)`,
			key.EventID, amount,
		)
		if err != nil {
			return fmt.Errorf("reserve seats: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return l.classify(ctx, key)
		}
		return nil
	}

	tag, err := database.Exec(ctx, l.pool,
		`UPDATE merch_variants
		 SET stock = stock - $3
		 WHERE id = $2 AND event_id = $1 AND stock >= $3`,
		key.EventID, key.VariantID, amount,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return l.classify(ctx, key)
	}
	return nil
}

func (l *Postgres) Release(ctx context.Context, key Key, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("release amount must be positive, got %d", amount)
	}

	if key.VariantID == "" {
		// Floor at zero: releasing more than was reserved is a caller bug
		// but must not corrupt the invariant.
		tag, err := database.Exec(ctx, l.pool,
			`UPDATE events
			 SET registration_count = GREATEST(registration_count - $2, 0), updated_at = NOW()
			 WHERE id = $1`,
			key.EventID, amount,
		)
		if err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUnknownKey
		}
		return nil
	}

	tag, err := database.Exec(ctx, l.pool,
		`UPDATE merch_variants
		 SET stock = stock + $3
		 WHERE id = $2 AND event_id = $1`,
		key.EventID, key.VariantID, amount,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnknownKey
	}
	return nil
}

// classify distinguishes a missing counter from an exhausted one after a
// conditional update matched no rows.
func (l *Postgres) classify(ctx context.Context, key Key) error {
	var exists bool
	var query string
	var args []any
	if key.VariantID == "" {
		query = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`
		args = []any{key.EventID}
	} else {
		query = `SELECT EXISTS (SELECT 1 FROM merch_variants WHERE id = $2 AND event_id = $1)`
		args = []any{key.EventID, key.VariantID}
	}
	if err := database.QueryRow(ctx, l.pool, query, args...).Scan(&exists); err != nil {
		return fmt.Errorf("classify denied reservation: %w", err)
	}
	if !exists {
		return ErrUnknownKey
	}
	return ErrDenied
}
