package models

// CartLine is one line of a cart snapshot. UnitPrice is the catalog price
// captured when the snapshot was taken.
type CartLine struct {
	MealID    string `json:"meal_id"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type CartSnapshot []CartLine

// OrderLineRequest is what a customer submits; prices come from the catalog.
type OrderLineRequest struct {
	MealID   string `json:"meal_id"`
	Quantity int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items           []OrderLineRequest `json:"items"`
	PromoCode       string             `json:"promo_code,omitempty"`
	RedeemPoints    int64              `json:"redeem_points,omitempty"`
	Currency        string             `json:"currency,omitempty"`
	DeliveryAddress string             `json:"delivery_address"`
}

type Meal struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	IsAvailable bool   `json:"is_available"`
}
