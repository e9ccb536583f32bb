package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

type PromoService interface {
	Create(ctx context.Context, p *models.PromoCode) error
	List(ctx context.Context) ([]models.PromoCode, error)
	ListActive(ctx context.Context) ([]models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, patch models.PromoCodePatch) (*models.PromoCode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Validate(ctx context.Context, code string, orderAmount int64) (*models.PromoValidation, error)
	Applicable(ctx context.Context, orderAmount int64) ([]models.PromoValidation, error)
}

// --- Request / Response DTOs ---

type CreatePromoRequest struct {
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
	DiscountType   string `json:"discount_type"`
	DiscountValue  int64  `json:"discount_value"`
	MinOrderAmount *int64 `json:"min_order_amount,omitempty"`
	MaxDiscount    *int64 `json:"max_discount,omitempty"`
	UsageLimit     *int   `json:"usage_limit,omitempty"`
	ValidFrom      string `json:"valid_from,omitempty"` // RFC3339, defaults to now
	ValidUntil     string `json:"valid_until"`          // RFC3339
	IsActive       *bool  `json:"is_active,omitempty"`
}

type OrderAmountRequest struct {
	OrderAmount int64 `json:"order_amount"`
}

type ApplicableResponse struct {
	ApplicablePromoCodes []models.PromoValidation `json:"applicable_promo_codes"`
}

type PromoHandler struct {
	svc PromoService
	log *zap.Logger
}

func NewPromoHandler(svc PromoService, log *zap.Logger) *PromoHandler {
	return &PromoHandler{svc: svc, log: log}
}

// CreatePromo handles POST /admin/promo-codes
func (h *PromoHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req CreatePromoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid valid_until; use RFC3339")
		return
	}
	validFrom, err := parseTimeOrEmpty(req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid valid_from; use RFC3339")
		return
	}
	if validFrom == nil {
		now := time.Now().UTC()
		validFrom = &now
	}

	p := &models.PromoCode{
		Code:           req.Code,
		Description:    req.Description,
		DiscountType:   models.DiscountType(req.DiscountType),
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		UsageLimit:     req.UsageLimit,
		ValidFrom:      *validFrom,
		ValidUntil:     validUntil,
		IsActive:       req.IsActive == nil || *req.IsActive,
	}
	if err := h.svc.Create(r.Context(), p); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPromos handles GET /admin/promo-codes
func (h *PromoHandler) ListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, promos)
}

// ListActive handles GET /promo-codes/active
func (h *PromoHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	promos, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, promos)
}

// UpdatePromo handles PATCH /admin/promo-codes/{id}
func (h *PromoHandler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid promo code id")
		return
	}
	var patch models.PromoCodePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	p, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePromo handles DELETE /admin/promo-codes/{id}
func (h *PromoHandler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid promo code id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidatePromo handles POST /promo-codes/{code}/validate
func (h *PromoHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req OrderAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	res, err := h.svc.Validate(r.Context(), chi.URLParam(r, "code"), req.OrderAmount)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ApplicablePromos handles POST /promo-codes/applicable
func (h *PromoHandler) ApplicablePromos(w http.ResponseWriter, r *http.Request) {
	var req OrderAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	promos, err := h.svc.Applicable(r.Context(), req.OrderAmount)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{ApplicablePromoCodes: promos})
}
