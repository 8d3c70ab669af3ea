package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/logging"
	"github.com/andreasstove999/ecommerce-system/internal/order"
)

type OrderService interface {
	Create(ctx context.Context, in order.CreateInput) (order.Order, error)
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
}

type OrdersHandler struct {
	svc    OrderService
	logger *zap.Logger
}

func NewOrdersHandler(svc OrderService, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{svc: svc, logger: logger}
}

func (h *OrdersHandler) Mount(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{orderId}", h.Get)
	})
}

func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in order.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.svc.Create(r.Context(), in)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("create order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Location", "/orders/"+o.ID.String())
	writeJSON(w, http.StatusAccepted, o)
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("get order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}
