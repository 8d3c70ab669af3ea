package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("payment not found")

type Repository interface {
	// Record stores the attempt and, when given, the effective payment atomically.
	Record(ctx context.Context, a Attempt, effective *EffectivePayment) error
	Get(ctx context.Context, id uuid.UUID) (Attempt, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Record(ctx context.Context, a Attempt, effective *EffectivePayment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_attempts (id, order_id, amount, currency, status, failure_reason, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrderID, a.Amount, a.Currency, a.Status, a.FailureReason, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}

	if effective != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO effective_payments (id, order_id, amount, currency, processed_at)
             VALUES ($1, $2, $3, $4, $5)`,
			effective.ID, effective.OrderID, effective.Amount, effective.Currency, effective.ProcessedAt,
		)
		if err != nil {
			return fmt.Errorf("insert effective payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (Attempt, error) {
	var a Attempt
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.order_id, a.amount, a.currency, a.status, a.failure_reason, a.created_at,
                e.id IS NOT NULL
         FROM payment_attempts a
         LEFT JOIN effective_payments e ON e.id = a.id
         WHERE a.id = $1`,
		id,
	).Scan(&a.ID, &a.OrderID, &a.Amount, &a.Currency, &a.Status, &a.FailureReason, &a.CreatedAt, &a.Effective)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, fmt.Errorf("select payment attempt: %w", err)
	}
	return a, nil
}
