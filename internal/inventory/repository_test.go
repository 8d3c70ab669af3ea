package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	stockColumns       = []string{"product_id", "available_quantity", "reserved_quantity", "updated_at"}
	reservationColumns = []string{"id", "order_id", "product_id", "quantity", "status", "failure_reason", "created_at", "updated_at"}
)

func TestPostgresRepository_SeedStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO stock_items .* ON CONFLICT \(product_id\) DO NOTHING`).
		WithArgs("default", 100).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresRepository(mock).SeedStock(context.Background(), "default", 100))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetReservation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, orderID := uuid.New(), uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reason := "insufficient_stock"
	mock.ExpectQuery(`FROM stock_reservations`).
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(reservationColumns).
			AddRow(id, orderID, "default", 1, "FAILED", &reason, now, now))

	res, err := NewPostgresRepository(mock).GetReservation(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, ReservationFailed, res.Status)
	require.NotNil(t, res.FailureReason)
	assert.Equal(t, reason, *res.FailureReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetStockMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM stock_items`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresRepository(mock).GetStock(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_RejectsUnknownReservationStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	orderID := uuid.New()
	mock.ExpectQuery(`FROM stock_reservations`).
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(reservationColumns).
			AddRow(uuid.New(), orderID, "default", 1, "LOST", (*string)(nil), now, now))

	_, err = NewPostgresRepository(mock).GetReservation(context.Background(), orderID)
	assert.ErrorContains(t, err, "LOST")
	assert.Error(t, err)
}

func TestEngine_ReserveAgainstPostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orderID := uuid.New()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM stock_reservations\s+WHERE order_id = \$1 FOR UPDATE`).
		WithArgs(orderID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM stock_items\s+WHERE product_id = \$1 FOR UPDATE`).
		WithArgs("default").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO stock_items`).
		WithArgs("default", 3, 0, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM stock_items\s+WHERE product_id = \$1 FOR UPDATE`).
		WithArgs("default").
		WillReturnRows(pgxmock.NewRows(stockColumns).AddRow("default", 3, 0, now))
	mock.ExpectExec(`UPDATE stock_items`).
		WithArgs("default", 2, 1, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO stock_reservations`).
		WithArgs(pgxmock.AnyArg(), orderID, "default", 1, "RESERVED", pgxmock.AnyArg(), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	e := NewEngine(NewPostgresRepository(mock), testSettings, zap.NewNop(), nil)
	e.now = func() time.Time { return now }

	got, err := e.Reserve(context.Background(), orderID, "default", 1)
	require.NoError(t, err)
	assert.Equal(t, ReservationReserved, got.Reservation.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ReleaseAgainstPostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, orderID := uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM stock_reservations\s+WHERE order_id = \$1 FOR UPDATE`).
		WithArgs(orderID).
		WillReturnRows(pgxmock.NewRows(reservationColumns).
			AddRow(id, orderID, "default", 2, "RESERVED", (*string)(nil), now, now))
	mock.ExpectQuery(`FROM stock_items\s+WHERE product_id = \$1 FOR UPDATE`).
		WithArgs("default").
		WillReturnRows(pgxmock.NewRows(stockColumns).AddRow("default", 5, 1, now))
	mock.ExpectExec(`UPDATE stock_items`).
		WithArgs("default", 7, 0, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE stock_reservations`).
		WithArgs(id, "RELEASED", pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	e := NewEngine(NewPostgresRepository(mock), testSettings, zap.NewNop(), nil)
	e.now = func() time.Time { return now }

	changed, err := e.Release(context.Background(), orderID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}
