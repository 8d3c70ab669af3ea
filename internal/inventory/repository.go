package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	GetStock(ctx context.Context, productID string) (StockItem, error)
	GetReservation(ctx context.Context, orderID uuid.UUID) (Reservation, error)
	SeedStock(ctx context.Context, productID string, quantity int) error
}

// TransactionalRepository holds the locking reads and writes used by the engine.
// Every method taking a tx runs inside the caller's transaction.
type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	GetReservationForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (Reservation, error)
	GetStockForUpdate(ctx context.Context, tx pgx.Tx, productID string) (StockItem, error)
	EnsureStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error
	UpdateStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error
	CreateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error
	UpdateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const (
	selectStock = `
		SELECT product_id, available_quantity, reserved_quantity, updated_at
		FROM stock_items
		WHERE product_id = $1`

	selectReservation = `
		SELECT id, order_id, product_id, quantity, status, failure_reason, created_at, updated_at
		FROM stock_reservations
		WHERE order_id = $1`
)

func (r *PostgresRepository) GetStock(ctx context.Context, productID string) (StockItem, error) {
	return scanStock(r.pool.QueryRow(ctx, selectStock, productID))
}

func (r *PostgresRepository) GetReservation(ctx context.Context, orderID uuid.UUID) (Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx, selectReservation, orderID))
}

// SeedStock creates the stock row if it does not exist yet.
func (r *PostgresRepository) SeedStock(ctx context.Context, productID string, quantity int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stock_items (product_id, available_quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (product_id) DO NOTHING
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("seed stock %s: %w", productID, err)
	}
	return nil
}

func (r *PostgresRepository) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, txOptions)
}

func (r *PostgresRepository) GetReservationForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (Reservation, error) {
	return scanReservation(tx.QueryRow(ctx, selectReservation+` FOR UPDATE`, orderID))
}

func (r *PostgresRepository) GetStockForUpdate(ctx context.Context, tx pgx.Tx, productID string) (StockItem, error) {
	return scanStock(tx.QueryRow(ctx, selectStock+` FOR UPDATE`, productID))
}

// EnsureStockWithTx inserts item unless a row for the product already exists.
// Concurrent inserters serialize on the primary key.
func (r *PostgresRepository) EnsureStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_items (product_id, available_quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) DO NOTHING
	`, item.ProductID, item.AvailableQuantity, item.ReservedQuantity, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ensure stock %s: %w", item.ProductID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error {
	tag, err := tx.Exec(ctx, `
		UPDATE stock_items
		SET available_quantity = $2, reserved_quantity = $3, updated_at = $4
		WHERE product_id = $1
	`, item.ProductID, item.AvailableQuantity, item.ReservedQuantity, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update stock %s: %w", item.ProductID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_reservations (id, order_id, product_id, quantity, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, res.ID, res.OrderID, res.ProductID, res.Quantity, res.Status.String(), res.FailureReason, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation for order %s: %w", res.OrderID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error {
	tag, err := tx.Exec(ctx, `
		UPDATE stock_reservations
		SET status = $2, failure_reason = $3, updated_at = $4
		WHERE id = $1
	`, res.ID, res.Status.String(), res.FailureReason, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", res.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStock(row pgx.Row) (StockItem, error) {
	var item StockItem
	if err := row.Scan(&item.ProductID, &item.AvailableQuantity, &item.ReservedQuantity, &item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, ErrNotFound
		}
		return StockItem{}, fmt.Errorf("select stock: %w", err)
	}
	return item, nil
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var (
		res    Reservation
		status string
	)
	err := row.Scan(&res.ID, &res.OrderID, &res.ProductID, &res.Quantity, &status, &res.FailureReason, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	if res.Status, err = ParseReservationStatus(status); err != nil {
		return Reservation{}, err
	}
	return res, nil
}
