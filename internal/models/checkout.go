package models

import "github.com/google/uuid"

type CheckoutRequest struct {
	CustomerID   string
	Cart         CartSnapshot
	PromoCode    string
	RedeemPoints int64
	Currency     string
}

type CheckoutResult struct {
	Subtotal           int64      `json:"subtotal"`
	PromoDiscount      int64      `json:"promo_discount"`
	LoyaltyDiscount    int64      `json:"loyalty_discount"`
	FinalAmount        int64      `json:"final_amount"`
	Currency           string     `json:"currency"`
	AppliedPromoCodeID *uuid.UUID `json:"applied_promo_code_id,omitempty"`
	PointsRedeemed     int64      `json:"points_redeemed,omitempty"`
}

// IntentRequest asks the payment gateway for a payment intent.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type CheckoutReceipt struct {
	OrderID         uuid.UUID      `json:"order_id"`
	Result          CheckoutResult `json:"result"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
	ClientSecret    string         `json:"client_secret,omitempty"`

	// Replayed is set when the idempotency key matched an order that was
	// already placed. The client secret is not stored, so it is empty then.
	Replayed bool `json:"replayed,omitempty"`
}
