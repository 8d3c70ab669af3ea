package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("order not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
}

// TransactionalRepository exposes the row-locking operations used by the saga.
type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Order, error)
	UpdateWithTx(ctx context.Context, tx pgx.Tx, o Order) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectOrder = `
	SELECT id, status, stock_status, payment_status, amount, currency, customer_id, created_at, updated_at
	FROM orders
	WHERE id = $1`

func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, status, stock_status, payment_status, amount, currency, customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, o.ID, o.Status.String(), o.StockStatus.String(), o.PaymentStatus.String(),
		o.Amount, o.Currency, o.CustomerID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, selectOrder, id))
}

func (r *PostgresRepository) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, txOptions)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Order, error) {
	return scanOrder(tx.QueryRow(ctx, selectOrder+` FOR UPDATE`, id))
}

func (r *PostgresRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, o Order) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, stock_status = $3, payment_status = $4, updated_at = $5
		WHERE id = $1
	`, o.ID, o.Status.String(), o.StockStatus.String(), o.PaymentStatus.String(), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                      Order
		status, stock, payment string
		createdAt, updatedAt   time.Time
	)
	err := row.Scan(&o.ID, &status, &stock, &payment, &o.Amount, &o.Currency, &o.CustomerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}

	if o.Status, err = ParseStatus(status); err != nil {
		return Order{}, err
	}
	if o.StockStatus, err = ParseStockStatus(stock); err != nil {
		return Order{}, err
	}
	if o.PaymentStatus, err = ParsePaymentStatus(payment); err != nil {
		return Order{}, err
	}
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = updatedAt.UTC()
	return o, nil
}
