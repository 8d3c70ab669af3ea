package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

// ReserveResult is the committed reservation for an order. Replayed is set when
// the reservation already existed before this call.
type ReserveResult struct {
	Reservation Reservation
	Replayed    bool
}

// Engine applies reservations against stock rows. Every operation runs in a
// single transaction that locks the reservation first and the stock row second.
type Engine struct {
	repo     TransactionalRepository
	settings Settings
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewEngine(repo TransactionalRepository, settings Settings, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		repo:     repo,
		settings: settings,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.New,
	}
}

// Reserve holds quantity units of productID for orderID. At most one
// reservation exists per order; repeated calls return the stored one.
func (e *Engine) Reserve(ctx context.Context, orderID uuid.UUID, productID string, quantity int) (ReserveResult, error) {
	if quantity <= 0 {
		return ReserveResult{}, fmt.Errorf("reserve order %s: quantity must be positive, got %d", orderID, quantity)
	}
	log := e.log(ctx, orderID)

	tx, err := e.repo.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ReserveResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := e.repo.GetReservationForUpdate(ctx, tx, orderID)
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return ReserveResult{}, fmt.Errorf("commit order %s: %w", orderID, err)
		}
		log.Info("reservation already exists",
			zap.String("event", "inventory.reservation.replayed"),
			zap.String("reservation_id", existing.ID.String()),
			zap.String("status", existing.Status.String()))
		return ReserveResult{Reservation: existing, Replayed: true}, nil
	case !errors.Is(err, ErrNotFound):
		return ReserveResult{}, err
	}

	now := e.now()
	stock, err := e.lockStock(ctx, tx, productID, now)
	if err != nil {
		return ReserveResult{}, err
	}

	res := Reservation{
		ID:        e.newID(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if stock.AvailableQuantity < quantity {
		reason := ReasonInsufficientStock
		res.Status = ReservationFailed
		res.FailureReason = &reason
		if err := e.repo.CreateReservationWithTx(ctx, tx, res); err != nil {
			return ReserveResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return ReserveResult{}, fmt.Errorf("commit order %s: %w", orderID, err)
		}
		log.Info("reservation failed",
			zap.String("event", "inventory.reservation.failed"),
			zap.String("product_id", productID),
			zap.Int("available", stock.AvailableQuantity),
			zap.Int("requested", quantity))
		e.metrics.Reservation(res.Status.String())
		return ReserveResult{Reservation: res}, nil
	}

	stock.AvailableQuantity -= quantity
	stock.ReservedQuantity += quantity
	stock.UpdatedAt = now
	if err := e.repo.UpdateStockWithTx(ctx, tx, stock); err != nil {
		return ReserveResult{}, err
	}
	res.Status = ReservationReserved
	if err := e.repo.CreateReservationWithTx(ctx, tx, res); err != nil {
		return ReserveResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ReserveResult{}, fmt.Errorf("commit order %s: %w", orderID, err)
	}

	log.Info("stock reserved",
		zap.String("event", "inventory.reservation.reserved"),
		zap.String("reservation_id", res.ID.String()),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("available", stock.AvailableQuantity))
	e.metrics.Reservation(res.Status.String())
	return ReserveResult{Reservation: res}, nil
}

// Commit finalizes a RESERVED reservation: the reserved units leave the stock
// row for good. It reports whether anything changed.
func (e *Engine) Commit(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return e.settle(ctx, orderID, ReservationCommitted, func(stock *StockItem, qty int) {
		stock.ReservedQuantity = max(0, stock.ReservedQuantity-qty)
	})
}

// Release returns the units of a RESERVED reservation to available stock.
func (e *Engine) Release(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return e.settle(ctx, orderID, ReservationReleased, func(stock *StockItem, qty int) {
		stock.AvailableQuantity += qty
		stock.ReservedQuantity = max(0, stock.ReservedQuantity-qty)
	})
}

func (e *Engine) settle(ctx context.Context, orderID uuid.UUID, target ReservationStatus, adjust func(*StockItem, int)) (bool, error) {
	name := "commit"
	if target == ReservationReleased {
		name = "release"
	}
	log := e.log(ctx, orderID)

	tx, err := e.repo.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := e.repo.GetReservationForUpdate(ctx, tx, orderID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("no reservation for order", zap.String("event", "inventory."+name+".missing"))
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}
	if res.Status != ReservationReserved {
		log.Debug("reservation not held", zap.String("event", "inventory."+name+".noop"), zap.String("status", res.Status.String()))
		return false, tx.Commit(ctx)
	}

	stock, err := e.repo.GetStockForUpdate(ctx, tx, res.ProductID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("no stock row for reservation",
			zap.String("event", "inventory."+name+".missing_stock"),
			zap.String("product_id", res.ProductID))
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	now := e.now()
	adjust(&stock, res.Quantity)
	stock.UpdatedAt = now
	if err := e.repo.UpdateStockWithTx(ctx, tx, stock); err != nil {
		return false, err
	}
	res.Status = target
	res.UpdatedAt = now
	if err := e.repo.UpdateReservationWithTx(ctx, tx, res); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit order %s: %w", orderID, err)
	}

	event := "inventory.reservation.committed"
	if target == ReservationReleased {
		event = "inventory.reservation.released"
	}
	log.Info("reservation settled",
		zap.String("event", event),
		zap.String("reservation_id", res.ID.String()),
		zap.Int("quantity", res.Quantity),
		zap.Int("available", stock.AvailableQuantity),
		zap.Int("reserved", stock.ReservedQuantity))
	e.metrics.Reservation(target.String())
	return true, nil
}

// lockStock locks the stock row, creating it with the default level first if
// the product has never been seen.
func (e *Engine) lockStock(ctx context.Context, tx pgx.Tx, productID string, now time.Time) (StockItem, error) {
	stock, err := e.repo.GetStockForUpdate(ctx, tx, productID)
	if !errors.Is(err, ErrNotFound) {
		return stock, err
	}
	err = e.repo.EnsureStockWithTx(ctx, tx, StockItem{
		ProductID:         productID,
		AvailableQuantity: e.settings.DefaultStock,
		UpdatedAt:         now,
	})
	if err != nil {
		return StockItem{}, err
	}
	return e.repo.GetStockForUpdate(ctx, tx, productID)
}

func (e *Engine) log(ctx context.Context, orderID uuid.UUID) *zap.Logger {
	return logging.FromContext(ctx, e.logger).With(zap.String("order_id", orderID.String()))
}
