package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/service"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseTimeOrEmpty(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{checkout.ErrInvalidLine, http.StatusBadRequest, "invalid_cart_line"},
	{checkout.ErrInvalidRedemption, http.StatusBadRequest, "invalid_redemption"},
	{checkout.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency"},
	{checkout.ErrPromoNotFound, http.StatusNotFound, "promo_code_not_found"},
	{checkout.ErrPromoInactive, http.StatusBadRequest, "promo_code_inactive"},
	{checkout.ErrPromoExpired, http.StatusBadRequest, "promo_code_expired"},
	{checkout.ErrPromoUsageExceeded, http.StatusBadRequest, "promo_code_usage_exceeded"},
	{checkout.ErrPromoMinimumNotMet, http.StatusBadRequest, "minimum_order_not_met"},
	{checkout.ErrInsufficientPoints, http.StatusBadRequest, "insufficient_points"},
	{checkout.ErrPaymentGateway, http.StatusBadGateway, "payment_failed"},
	{service.ErrMealNotFound, http.StatusNotFound, "meal_not_found"},
	{service.ErrMealUnavailable, http.StatusBadRequest, "meal_unavailable"},
	{service.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{service.ErrInvalidOrderStatus, http.StatusBadRequest, "invalid_order_status"},
	{service.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{service.ErrConcurrentUpdate, http.StatusConflict, "checkout_conflict"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_order_amount"},
	{service.ErrPromoExists, http.StatusConflict, "promo_code_exists"},
	{service.ErrInvalidPromo, http.StatusBadRequest, "invalid_promo_code"},
	{service.ErrPromoCodeNotFound, http.StatusNotFound, "promo_code_not_found"},
	{service.ErrInvalidPoints, http.StatusBadRequest, "invalid_points"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// writeServiceError maps err to a status and an {"error", "detail"} body.
// Unknown errors are logged and reported as internal_error without detail.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, map[string]string{"error": m.code, "detail": err.Error()})
			return
		}
	}
	log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error")
}
