package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/api/middleware"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

type CheckoutService interface {
	Quote(ctx context.Context, customerID string, req models.PlaceOrderRequest) (*models.CheckoutResult, error)
	PlaceOrder(ctx context.Context, customerID string, req models.PlaceOrderRequest, idempotencyKey string) (*models.CheckoutReceipt, error)
	GetOrder(ctx context.Context, customerID string, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
}

type CheckoutHandler struct {
	svc CheckoutService
	log *zap.Logger
}

func NewCheckoutHandler(svc CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, log: log}
}

// Quote handles POST /checkout/quote
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	res, err := h.svc.Quote(r.Context(), middleware.CustomerID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PlaceOrder handles POST /orders
// An Idempotency-Key header is forwarded to the payment gateway. Repeating
// a key that already produced an order returns that order's receipt.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		writeError(w, http.StatusBadRequest, "delivery_address required")
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	receipt, err := h.svc.PlaceOrder(r.Context(), middleware.CustomerID(r.Context()), req, key)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// GetOrder handles GET /orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrder(r.Context(), middleware.CustomerID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ListOrders handles GET /orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context(), middleware.CustomerID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: orders})
}

// UpdateOrderStatus handles PATCH /admin/orders/{id}/status
func (h *CheckoutHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	status := models.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	o, err := h.svc.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
