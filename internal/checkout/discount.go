package checkout

import (
	"fmt"
	"time"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

// DiscountFor returns the discount promo grants on subtotal. PERCENTAGE
// discounts are floored and capped at MaxDiscount; both kinds are capped at
// subtotal.
func DiscountFor(promo *models.PromoCode, subtotal int64) int64 {
	var discount int64
	switch promo.DiscountType {
	case models.DiscountPercentage:
		// Split subtotal so the multiplication cannot overflow; the result
		// equals floor(subtotal * value / 100).
		discount = subtotal/100*promo.DiscountValue + subtotal%100*promo.DiscountValue/100
		if promo.MaxDiscount != nil && discount > *promo.MaxDiscount {
			discount = *promo.MaxDiscount
		}
	case models.DiscountFixed:
		discount = promo.DiscountValue
	}
	if discount < 0 {
		return 0
	}
	return min(discount, subtotal)
}

// RedemptionValue converts points to currency at rate points per unit.
// It does not check the balance.
func RedemptionValue(points, rate int64) int64 {
	if rate <= 0 {
		rate = DefaultRedemptionRate
	}
	return points / rate
}

// ValidatePromo checks the eligibility rules of promo for an order of
// subtotal at time now, in the order they are reported to customers.
func ValidatePromo(promo *models.PromoCode, subtotal int64, now time.Time) error {
	if !promo.IsActive {
		return ErrPromoInactive
	}
	if !promo.InWindow(now) {
		return ErrPromoExpired
	}
	if promo.UsageLimit != nil && promo.UsedCount >= *promo.UsageLimit {
		return ErrPromoUsageExceeded
	}
	if promo.MinOrderAmount != nil && subtotal < *promo.MinOrderAmount {
		return fmt.Errorf("%w: minimum order amount of %d required", ErrPromoMinimumNotMet, *promo.MinOrderAmount)
	}
	return nil
}
