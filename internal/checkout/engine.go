package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

const (
	DefaultRedemptionRate int64 = 10
	DefaultCurrency             = "bdt"

	// MaxLineQuantity caps a single cart line.
	MaxLineQuantity = 1000
)

// PromoLookup finds a promo code by its case-insensitive code. It returns
// nil, nil when no code matches.
type PromoLookup interface {
	PromoByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

type PromoLookupFunc func(ctx context.Context, code string) (*models.PromoCode, error)

func (f PromoLookupFunc) PromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return f(ctx, code)
}

// LoyaltyLookup returns the points balance of ownerID, creating an empty
// account if there is none.
type LoyaltyLookup interface {
	PointsBalance(ctx context.Context, ownerID string) (int64, error)
}

type LoyaltyLookupFunc func(ctx context.Context, ownerID string) (int64, error)

func (f LoyaltyLookupFunc) PointsBalance(ctx context.Context, ownerID string) (int64, error) {
	return f(ctx, ownerID)
}

// Redemption is the loyalty mutation a confirmed checkout must apply.
type Redemption struct {
	OwnerID string
	Points  int64
	Entry   models.PointsEntry
}

// Actions lists the side effects to commit, in one transaction, once the
// payment intent exists. Nil fields mean nothing to do.
type Actions struct {
	PromoUsage *uuid.UUID
	Redemption *Redemption
	Payment    *models.IntentRequest
}

type Plan struct {
	Result  models.CheckoutResult
	Actions Actions
}

type Engine struct {
	rate int64
	now  func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine converting rate points into one currency unit.
// A non-positive rate falls back to DefaultRedemptionRate.
func NewEngine(rate int64, opts ...Option) *Engine {
	if rate <= 0 {
		rate = DefaultRedemptionRate
	}
	e := &Engine{rate: rate, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RedemptionRate() int64 { return e.rate }

// Compute prices req and returns the commit plan. It mutates nothing; the
// lookups must reflect the state the caller is going to commit against.
func (e *Engine) Compute(ctx context.Context, req models.CheckoutRequest, promos PromoLookup, loyalty LoyaltyLookup) (*Plan, error) {
	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	if req.RedeemPoints < 0 {
		return nil, ErrInvalidRedemption
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	subtotal, err := Subtotal(req.Cart)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Result: models.CheckoutResult{Subtotal: subtotal, Currency: currency}}

	code := strings.TrimSpace(req.PromoCode)
	if code != "" {
		if promos == nil {
			return nil, ErrPromoNotFound
		}
		promo, err := promos.PromoByCode(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, fmt.Errorf("lookup promo code: %w", err)
		}
		if promo == nil {
			return nil, ErrPromoNotFound
		}
		if err := ValidatePromo(promo, subtotal, e.now()); err != nil {
			return nil, err
		}
		id := promo.ID
		plan.Result.PromoDiscount = DiscountFor(promo, subtotal)
		plan.Result.AppliedPromoCodeID = &id
		plan.Actions.PromoUsage = &id
	}

	if req.RedeemPoints > 0 {
		if loyalty == nil {
			return nil, ErrInsufficientPoints
		}
		balance, err := loyalty.PointsBalance(ctx, req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("lookup loyalty balance: %w", err)
		}
		if req.RedeemPoints > balance {
			return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, balance, req.RedeemPoints)
		}
		value := RedemptionValue(req.RedeemPoints, e.rate)
		plan.Result.LoyaltyDiscount = value
		plan.Result.PointsRedeemed = req.RedeemPoints
		plan.Actions.Redemption = &Redemption{
			OwnerID: req.CustomerID,
			Points:  req.RedeemPoints,
			Entry: models.PointsEntry{
				ID:          uuid.New(),
				Points:      req.RedeemPoints,
				Type:        models.PointsRedeemed,
				Description: fmt.Sprintf("Redeemed %d points for %d discount", req.RedeemPoints, value),
				CreatedAt:   e.now(),
			},
		}
	}

	// Both discounts are taken off the subtotal independently and clamped once.
	plan.Result.FinalAmount = max(0, subtotal-plan.Result.PromoDiscount-plan.Result.LoyaltyDiscount)

	if plan.Result.FinalAmount > 0 {
		meta := map[string]string{"customer_id": req.CustomerID}
		if code != "" {
			meta["promo_code"] = strings.ToUpper(code)
		}
		if plan.Result.PointsRedeemed > 0 {
			meta["points_redeemed"] = fmt.Sprint(plan.Result.PointsRedeemed)
		}
		plan.Actions.Payment = &models.IntentRequest{
			Amount:   plan.Result.FinalAmount,
			Currency: currency,
			Metadata: meta,
		}
	}

	return plan, nil
}

// Subtotal sums unit price times quantity over cart. Quantities above
// MaxLineQuantity and totals that would overflow int64 are rejected.
func Subtotal(cart models.CartSnapshot) (int64, error) {
	var subtotal int64
	for i, line := range cart {
		if line.Quantity < 1 || line.Quantity > MaxLineQuantity || line.UnitPrice <= 0 {
			return 0, fmt.Errorf("%w: line %d (%s)", ErrInvalidLine, i, line.MealID)
		}
		if line.UnitPrice > (math.MaxInt64-subtotal)/int64(line.Quantity) {
			return 0, fmt.Errorf("%w: line %d (%s) overflows the order total", ErrInvalidLine, i, line.MealID)
		}
		subtotal += line.UnitPrice * int64(line.Quantity)
	}
	return subtotal, nil
}
