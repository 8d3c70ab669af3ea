package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

type InventoryHandler struct {
	repo   inventory.Repository
	logger *zap.Logger
}

func NewInventoryHandler(repo inventory.Repository, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{repo: repo, logger: logger}
}

func (h *InventoryHandler) Mount(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/reservations/{orderId}", h.GetReservation)
		r.Get("/{productId}", h.GetStock)
	})
}

func (h *InventoryHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	item, err := h.repo.GetStock(r.Context(), productID)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("get stock", zap.String("product_id", productID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	res, err := h.repo.GetReservation(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("get reservation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
