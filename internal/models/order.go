package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderReady, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next.
// DELIVERED and CANCELLED are final.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	MealID    string `json:"meal_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	CustomerID      string      `json:"customer_id"`
	Status          OrderStatus `json:"status"`
	Items           []OrderItem `json:"items"`
	Subtotal        int64       `json:"subtotal"`
	PromoDiscount   int64       `json:"promo_discount"`
	LoyaltyDiscount int64       `json:"loyalty_discount"`
	TotalAmount     int64       `json:"total_amount"`
	Currency        string      `json:"currency"`
	PromoCodeID     *uuid.UUID  `json:"promo_code_id,omitempty"`
	PointsRedeemed  int64       `json:"points_redeemed"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	DeliveryAddress string      `json:"delivery_address"`
	IdempotencyKey  string      `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
}
