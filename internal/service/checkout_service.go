package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/events"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
	"github.com/Cheertaboi/meal-checkout-service/internal/payment"
	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
	"github.com/Cheertaboi/meal-checkout-service/pkg/metrics"
)

var (
	ErrMealNotFound            = errors.New("meal not found")
	ErrMealUnavailable         = errors.New("meal is not available")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidOrderStatus      = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("order status cannot change that way")
)

// orderIDNamespace derives order ids from customer idempotency keys, so a
// retried request maps to the same order and the same payment intent.
var orderIDNamespace = uuid.MustParse("6f1c2a4e-8b3d-4c59-9a7e-2d5b1f0e3c81")

type CheckoutDeps struct {
	DB        *sql.DB
	Engine    *checkout.Engine
	Meals     MealRepo
	Promos    PromoRepo
	Loyalty   LoyaltyRepo
	Orders    OrderRepo
	Gateway   payment.Gateway
	Publisher events.Publisher
	Metrics   *metrics.ServerMetrics
	Logger    *zap.Logger

	DefaultCurrency string
	Timeout         time.Duration
}

type CheckoutService struct {
	db        *sql.DB
	engine    *checkout.Engine
	meals     MealRepo
	promos    PromoRepo
	loyalty   LoyaltyRepo
	orders    OrderRepo
	gateway   payment.Gateway
	publisher events.Publisher
	metrics   *metrics.ServerMetrics
	log       *zap.Logger

	currency string
	timeout  time.Duration
}

func NewCheckoutService(d CheckoutDeps) *CheckoutService {
	s := &CheckoutService{
		db:        d.DB,
		engine:    d.Engine,
		meals:     d.Meals,
		promos:    d.Promos,
		loyalty:   d.Loyalty,
		orders:    d.Orders,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Logger,
		currency:  d.DefaultCurrency,
		timeout:   d.Timeout,
	}
	if s.engine == nil {
		s.engine = checkout.NewEngine(checkout.DefaultRedemptionRate)
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.currency == "" {
		s.currency = checkout.DefaultCurrency
	}
	if s.timeout <= 0 {
		s.timeout = 15 * time.Second
	}
	return s
}

// Quote prices the order against current promo and loyalty state without
// locking or changing anything.
func (s *CheckoutService) Quote(ctx context.Context, customerID string, req models.PlaceOrderRequest) (*models.CheckoutResult, error) {
	cart, err := s.snapshot(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	plan, err := s.engine.Compute(ctx, s.checkoutRequest(customerID, cart, req),
		checkout.PromoLookupFunc(s.promos.GetByCode),
		checkout.LoyaltyLookupFunc(s.loyalty.Balance),
	)
	if err != nil {
		return nil, err
	}
	return &plan.Result, nil
}

// PlaceOrder re-validates the checkout under row locks, obtains a payment
// intent and only then commits promo usage, the loyalty debit and the order
// in one transaction.
//
// With an idempotency key the order id is derived from customer and key, so
// a retry sends the gateway identical parameters, and a retry after the
// order committed returns the stored receipt instead of charging again.
func (s *CheckoutService) PlaceOrder(ctx context.Context, customerID string, req models.PlaceOrderRequest, idempotencyKey string) (*models.CheckoutReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := strings.TrimSpace(idempotencyKey)
	orderID := uuid.New()
	if key != "" {
		orderID = uuid.NewSHA1(orderIDNamespace, []byte(customerID+":"+key))
		if receipt, err := s.replay(ctx, customerID, orderID); receipt != nil || err != nil {
			return receipt, err
		}
	}
	// Reused by every transaction attempt below.
	gatewayKey := key
	if gatewayKey == "" {
		gatewayKey = "order-" + orderID.String()
	}

	cart, err := s.snapshot(ctx, req.Items)
	if err != nil {
		s.metrics.ObserveCheckout("rejected")
		return nil, err
	}

	var (
		plan   *checkout.Plan
		intent *models.Intent
		order  *models.Order
	)

	// Read committed is enough: the promo and loyalty rows are locked FOR
	// UPDATE before they are read for validation.
	err = withTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		var account *models.LoyaltyAccount
		promos := checkout.PromoLookupFunc(func(ctx context.Context, code string) (*models.PromoCode, error) {
			return s.promos.GetByCodeForUpdate(ctx, tx, code)
		})
		loyalty := checkout.LoyaltyLookupFunc(func(ctx context.Context, ownerID string) (int64, error) {
			acc, err := s.loyalty.GetAndLockAccount(ctx, tx, ownerID)
			if err != nil {
				return 0, err
			}
			account = acc
			return acc.Points, nil
		})

		var err error
		plan, err = s.engine.Compute(ctx, s.checkoutRequest(customerID, cart, req), promos, loyalty)
		if err != nil {
			return err
		}

		if p := plan.Actions.Payment; p != nil {
			p.Metadata["order_id"] = orderID.String()
			p.IdempotencyKey = gatewayKey
			intent, err = s.gateway.CreateIntent(ctx, *p)
			if err != nil {
				return fmt.Errorf("%w: %w", checkout.ErrPaymentGateway, err)
			}
		}

		if id := plan.Actions.PromoUsage; id != nil {
			if err := s.promos.IncrementUsage(ctx, tx, *id); err != nil {
				return fmt.Errorf("increment promo usage: %w", err)
			}
		}

		if r := plan.Actions.Redemption; r != nil {
			if account == nil {
				return fmt.Errorf("redeem points: loyalty account of %s not locked", r.OwnerID)
			}
			if _, err := s.loyalty.Debit(ctx, tx, account.ID, r.Points); err != nil {
				if errors.Is(err, repository.ErrBalanceTooLow) {
					return checkout.ErrInsufficientPoints
				}
				return fmt.Errorf("debit loyalty points: %w", err)
			}
			if err := s.loyalty.AppendHistory(ctx, tx, account.ID, r.Entry); err != nil {
				return fmt.Errorf("append points history: %w", err)
			}
		}

		order = newOrder(orderID, customerID, req.DeliveryAddress, cart, plan.Result, intent)
		order.IdempotencyKey = key
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil && key != "" {
		// A concurrent request with the same key may have committed first.
		if receipt, rerr := s.replay(ctx, customerID, orderID); receipt != nil && rerr == nil {
			return receipt, nil
		}
	}
	if err != nil {
		s.observeFailure(err)
		if intent != nil {
			s.log.Warn("payment intent left without order",
				zap.String("order_id", orderID.String()),
				zap.String("payment_intent_id", intent.ID),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.ObserveCheckout("confirmed")
	s.log.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", customerID),
		zap.Int64("subtotal", order.Subtotal),
		zap.Int64("total_amount", order.TotalAmount),
		zap.Int64("points_redeemed", order.PointsRedeemed))

	s.publish(ctx, order)

	receipt := &models.CheckoutReceipt{OrderID: order.ID, Result: plan.Result}
	if intent != nil {
		receipt.PaymentIntentID = intent.ID
		receipt.ClientSecret = intent.ClientSecret
	}
	return receipt, nil
}

// GetOrder returns the order only to the customer who placed it.
func (s *CheckoutService) GetOrder(ctx context.Context, customerID string, id uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// UpdateOrderStatus moves an order along PENDING, PREPARING, READY,
// DELIVERED. PENDING and PREPARING orders may also be CANCELLED.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrderStatus, status)
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, o.Status, status)
	}

	if err := s.orders.UpdateStatus(ctx, id, o.Status, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Changed by someone else since it was read.
			return nil, fmt.Errorf("%w: %s was changed concurrently", ErrInvalidStatusTransition, id)
		}
		return nil, err
	}

	s.log.Info("order status updated",
		zap.String("order_id", id.String()),
		zap.String("from", string(o.Status)),
		zap.String("to", string(status)))
	o.Status = status
	return o, nil
}

// replay returns the receipt of an order already placed under orderID, or
// nil when there is none.
func (s *CheckoutService) replay(ctx context.Context, customerID string, orderID uuid.UUID) (*models.CheckoutReceipt, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, nil
	}

	s.metrics.ObserveCheckout("replayed")
	return &models.CheckoutReceipt{
		OrderID: o.ID,
		Result: models.CheckoutResult{
			Subtotal:           o.Subtotal,
			PromoDiscount:      o.PromoDiscount,
			LoyaltyDiscount:    o.LoyaltyDiscount,
			FinalAmount:        o.TotalAmount,
			Currency:           o.Currency,
			AppliedPromoCodeID: o.PromoCodeID,
			PointsRedeemed:     o.PointsRedeemed,
		},
		PaymentIntentID: o.PaymentIntentID,
		Replayed:        true,
	}, nil
}

// snapshot prices the requested lines at current catalog prices.
func (s *CheckoutService) snapshot(ctx context.Context, items []models.OrderLineRequest) (models.CartSnapshot, error) {
	if len(items) == 0 {
		return nil, checkout.ErrEmptyCart
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.MealID == "" || it.Quantity < 1 || it.Quantity > checkout.MaxLineQuantity {
			return nil, fmt.Errorf("%w: line %d", checkout.ErrInvalidLine, i)
		}
		if !seen[it.MealID] {
			seen[it.MealID] = true
			ids = append(ids, it.MealID)
		}
	}

	meals, err := s.meals.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load meals: %w", err)
	}

	cart := make(models.CartSnapshot, 0, len(items))
	for _, it := range items {
		meal, ok := meals[it.MealID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMealNotFound, it.MealID)
		}
		if !meal.IsAvailable {
			return nil, fmt.Errorf("%w: %s", ErrMealUnavailable, meal.Name)
		}
		cart = append(cart, models.CartLine{MealID: meal.ID, UnitPrice: meal.Price, Quantity: it.Quantity})
	}
	return cart, nil
}

func (s *CheckoutService) checkoutRequest(customerID string, cart models.CartSnapshot, req models.PlaceOrderRequest) models.CheckoutRequest {
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	return models.CheckoutRequest{
		CustomerID:   customerID,
		Cart:         cart,
		PromoCode:    req.PromoCode,
		RedeemPoints: req.RedeemPoints,
		Currency:     currency,
	}
}

func (s *CheckoutService) observeFailure(err error) {
	switch {
	case errors.Is(err, checkout.ErrPaymentGateway):
		s.metrics.ObserveCheckout("payment_failed")
	case errors.Is(err, ErrConcurrentUpdate):
		s.metrics.ObserveCheckout("conflict")
		s.log.Warn("checkout gave up after concurrent updates", zap.Error(err))
	case isCheckoutRejection(err):
		s.metrics.ObserveCheckout("rejected")
	default:
		s.metrics.ObserveCheckout("error")
		s.log.Error("checkout failed", zap.Error(err))
	}
}

func (s *CheckoutService) publish(ctx context.Context, o *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	evt := events.OrderConfirmed{
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		PromoCodeID:     o.PromoCodeID,
		PointsRedeemed:  o.PointsRedeemed,
		PaymentIntentID: o.PaymentIntentID,
		OccurredAt:      o.CreatedAt,
	}
	if err := s.publisher.PublishOrderConfirmed(ctx, evt); err != nil {
		s.log.Error("publish order event", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}

func newOrder(id uuid.UUID, customerID, address string, cart models.CartSnapshot, res models.CheckoutResult, intent *models.Intent) *models.Order {
	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		items = append(items, models.OrderItem{MealID: line.MealID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	o := &models.Order{
		ID:              id,
		CustomerID:      customerID,
		Status:          models.OrderPending,
		Items:           items,
		Subtotal:        res.Subtotal,
		PromoDiscount:   res.PromoDiscount,
		LoyaltyDiscount: res.LoyaltyDiscount,
		TotalAmount:     res.FinalAmount,
		Currency:        res.Currency,
		PromoCodeID:     res.AppliedPromoCodeID,
		PointsRedeemed:  res.PointsRedeemed,
		DeliveryAddress: address,
	}
	if intent != nil {
		o.PaymentIntentID = intent.ID
	}
	return o
}

// isCheckoutRejection reports whether err is a customer-facing validation
// failure rather than an infrastructure problem.
func isCheckoutRejection(err error) bool {
	for _, target := range []error{
		checkout.ErrEmptyCart,
		checkout.ErrInvalidLine,
		checkout.ErrInvalidRedemption,
		checkout.ErrInvalidCurrency,
		checkout.ErrPromoNotFound,
		checkout.ErrPromoInactive,
		checkout.ErrPromoExpired,
		checkout.ErrPromoUsageExceeded,
		checkout.ErrPromoMinimumNotMet,
		checkout.ErrInsufficientPoints,
		ErrMealNotFound,
		ErrMealUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
