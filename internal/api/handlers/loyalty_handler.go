package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/api/middleware"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

type LoyaltyService interface {
	Account(ctx context.Context, ownerID string) (*models.LoyaltyAccount, error)
	Redeem(ctx context.Context, ownerID string, points int64) (*models.RedemptionResult, error)
	Award(ctx context.Context, ownerID string, points int64, description string) (int64, error)
}

type RedeemRequest struct {
	Points int64 `json:"points"`
}

type AwardRequest struct {
	Points      int64  `json:"points"`
	Description string `json:"description,omitempty"`
}

type AwardResponse struct {
	OwnerID string `json:"owner_id"`
	Points  int64  `json:"points"`
}

type LoyaltyHandler struct {
	svc LoyaltyService
	log *zap.Logger
}

func NewLoyaltyHandler(svc LoyaltyService, log *zap.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{svc: svc, log: log}
}

// Account handles GET /loyalty
func (h *LoyaltyHandler) Account(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Account(r.Context(), middleware.CustomerID(r.Context()))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Redeem handles POST /loyalty/redeem
func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	res, err := h.svc.Redeem(r.Context(), middleware.CustomerID(r.Context()), req.Points)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Award handles POST /admin/loyalty/{ownerID}/award
func (h *LoyaltyHandler) Award(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner id required")
		return
	}
	var req AwardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	balance, err := h.svc.Award(r.Context(), ownerID, req.Points, req.Description)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AwardResponse{OwnerID: ownerID, Points: balance})
}
