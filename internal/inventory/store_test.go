package inventory

import (
	"context"
	"errors"
	"maps"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory TransactionalRepository. Writes made through a tx
// become visible only after Commit.
type memStore struct {
	stock        map[string]StockItem
	reservations map[uuid.UUID]Reservation
	commits      int
	failCreate   error
}

func newMemStore() *memStore {
	return &memStore{
		stock:        map[string]StockItem{},
		reservations: map[uuid.UUID]Reservation{},
	}
}

type memTx struct {
	pgx.Tx
	store        *memStore
	stock        map[string]StockItem
	reservations map[uuid.UUID]Reservation
	done         bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.stock = t.stock
	t.store.reservations = t.reservations
	t.store.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (s *memStore) tx(tx pgx.Tx) *memTx {
	mt, ok := tx.(*memTx)
	if !ok || mt.done {
		panic("memStore: tx is not an open memTx")
	}
	return mt
}

func (s *memStore) GetStock(ctx context.Context, productID string) (StockItem, error) {
	item, ok := s.stock[productID]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	return item, nil
}

func (s *memStore) GetReservation(ctx context.Context, orderID uuid.UUID) (Reservation, error) {
	res, ok := s.reservations[orderID]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (s *memStore) SeedStock(ctx context.Context, productID string, quantity int) error {
	if _, ok := s.stock[productID]; !ok {
		s.stock[productID] = StockItem{ProductID: productID, AvailableQuantity: quantity}
	}
	return nil
}

func (s *memStore) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return &memTx{
		store:        s,
		stock:        maps.Clone(s.stock),
		reservations: maps.Clone(s.reservations),
	}, nil
}

func (s *memStore) GetReservationForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (Reservation, error) {
	res, ok := s.tx(tx).reservations[orderID]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (s *memStore) GetStockForUpdate(ctx context.Context, tx pgx.Tx, productID string) (StockItem, error) {
	item, ok := s.tx(tx).stock[productID]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	return item, nil
}

func (s *memStore) EnsureStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error {
	mt := s.tx(tx)
	if _, ok := mt.stock[item.ProductID]; !ok {
		mt.stock[item.ProductID] = item
	}
	return nil
}

func (s *memStore) UpdateStockWithTx(ctx context.Context, tx pgx.Tx, item StockItem) error {
	mt := s.tx(tx)
	if item.AvailableQuantity < 0 || item.ReservedQuantity < 0 {
		return errors.New("check constraint violated")
	}
	if _, ok := mt.stock[item.ProductID]; !ok {
		return ErrNotFound
	}
	mt.stock[item.ProductID] = item
	return nil
}

func (s *memStore) CreateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	mt := s.tx(tx)
	if _, ok := mt.reservations[res.OrderID]; ok {
		return errors.New("duplicate order_id")
	}
	mt.reservations[res.OrderID] = res
	return nil
}

func (s *memStore) UpdateReservationWithTx(ctx context.Context, tx pgx.Tx, res Reservation) error {
	mt := s.tx(tx)
	if _, ok := mt.reservations[res.OrderID]; !ok {
		return ErrNotFound
	}
	mt.reservations[res.OrderID] = res
	return nil
}
