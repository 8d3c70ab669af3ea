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
	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

type PaymentService interface {
	Process(ctx context.Context, in payment.ProcessInput) (payment.Attempt, error)
	Get(ctx context.Context, id uuid.UUID) (payment.Attempt, error)
}

type PaymentsHandler struct {
	svc    PaymentService
	logger *zap.Logger
}

func NewPaymentsHandler(svc PaymentService, logger *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{svc: svc, logger: logger}
}

func (h *PaymentsHandler) Mount(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.Process)
		r.Get("/{paymentId}", h.Get)
	})
}

func (h *PaymentsHandler) Process(w http.ResponseWriter, r *http.Request) {
	var in payment.ProcessInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.svc.Process(r.Context(), in)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if errors.Is(err, payment.ErrInvalidOutcome) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("process payment", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *PaymentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "paymentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		logging.FromContext(r.Context(), h.logger).Error("get payment", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
