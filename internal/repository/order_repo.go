package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

const orderColumns = `id, customer_id, status, subtotal, promo_discount, loyalty_discount, total_amount,
	currency, promo_code_id, points_redeemed, payment_intent_id, delivery_address, created_at`

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create inserts o and its items inside tx. An order whose id or
// idempotency key already exists fails with ErrDuplicateOrder.
func (r *OrderRepo) Create(ctx context.Context, tx *sql.Tx, o *models.Order) error {
	insertOrder := `
		INSERT INTO orders
		(id, customer_id, status, subtotal, promo_discount, loyalty_discount, total_amount,
		 currency, promo_code_id, points_redeemed, payment_intent_id, delivery_address,
		 idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
		RETURNING created_at
	`
	var promoID uuid.NullUUID
	if o.PromoCodeID != nil {
		promoID = uuid.NullUUID{UUID: *o.PromoCodeID, Valid: true}
	}
	var intentID sql.NullString
	if o.PaymentIntentID != "" {
		intentID = sql.NullString{String: o.PaymentIntentID, Valid: true}
	}
	var key sql.NullString
	if o.IdempotencyKey != "" {
		key = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}

	err := tx.QueryRowContext(ctx, insertOrder,
		o.ID,
		o.CustomerID,
		o.Status,
		o.Subtotal,
		o.PromoDiscount,
		o.LoyaltyDiscount,
		o.TotalAmount,
		o.Currency,
		promoID,
		o.PointsRedeemed,
		intentID,
		o.DeliveryAddress,
		key,
	).Scan(&o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return err
	}

	stmt := `INSERT INTO order_items (order_id, meal_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`
	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx, stmt, o.ID, it.MealID, it.Quantity, it.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := r.items(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []models.OrderItem{}
	}
	return o, nil
}

// ListByCustomer returns the customer's orders newest first, with items.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another. It returns
// ErrNotFound when no order with that id is in status from.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepo) items(ctx context.Context, orderIDs ...uuid.UUID) (map[uuid.UUID][]models.OrderItem, error) {
	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT order_id, meal_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID uuid.UUID
			it      models.OrderItem
		)
		if err := rows.Scan(&orderID, &it.MealID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], it)
	}
	return items, rows.Err()
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o        models.Order
		promoID  uuid.NullUUID
		intentID sql.NullString
	)
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.Status,
		&o.Subtotal,
		&o.PromoDiscount,
		&o.LoyaltyDiscount,
		&o.TotalAmount,
		&o.Currency,
		&promoID,
		&o.PointsRedeemed,
		&intentID,
		&o.DeliveryAddress,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if promoID.Valid {
		o.PromoCodeID = &promoID.UUID
	}
	o.PaymentIntentID = intentID.String
	return &o, nil
}
