package payment

import (
	"context"
	"errors"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive integer in the smallest currency unit")
	ErrInvalidCurrency = errors.New("currency code must be 3 characters")
)

// Gateway creates payment intents with an external processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req models.IntentRequest) (*models.Intent, error)
}

func validate(req models.IntentRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(req.Currency) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}
