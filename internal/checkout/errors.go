package checkout

import "errors"

// Validation failures. Each one aborts checkout before any state is touched;
// callers match them with errors.Is.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidLine        = errors.New("invalid cart line")
	ErrInvalidRedemption  = errors.New("redeem points must not be negative")
	ErrInvalidCurrency    = errors.New("currency must be a 3-letter code")
	ErrPromoNotFound      = errors.New("promo code not found")
	ErrPromoInactive      = errors.New("promo code is inactive")
	ErrPromoExpired       = errors.New("promo code has expired")
	ErrPromoUsageExceeded = errors.New("promo code usage limit reached")
	ErrPromoMinimumNotMet = errors.New("minimum order amount not met")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrPaymentGateway     = errors.New("payment gateway error")
)
