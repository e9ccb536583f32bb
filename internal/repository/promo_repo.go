package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

const promoColumns = `id, code, description, discount_type, discount_value,
	min_order_amount, max_discount, usage_limit, used_count,
	valid_from, valid_until, is_active, created_at, updated_at`

type PromoRepo struct {
	db *sql.DB
}

func NewPromoRepo(db *sql.DB) *PromoRepo {
	return &PromoRepo{db: db}
}

// GetByCode returns nil, nil when no promo code matches.
func (r *PromoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`
	return scanPromo(r.db.QueryRowContext(ctx, query, strings.ToUpper(code)))
}

// GetByCodeForUpdate is GetByCode holding a row lock until tx ends.
func (r *PromoRepo) GetByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1 FOR UPDATE`
	return scanPromo(tx.QueryRowContext(ctx, query, strings.ToUpper(code)))
}

func (r *PromoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE id = $1`
	return scanPromo(r.db.QueryRowContext(ctx, query, id))
}

func (r *PromoRepo) List(ctx context.Context) ([]models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes ORDER BY created_at DESC`
	return r.list(ctx, query)
}

// ListActive returns active codes whose validity window contains now.
func (r *PromoRepo) ListActive(ctx context.Context, now time.Time) ([]models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes
		WHERE is_active AND valid_from <= $1 AND valid_until >= $1
		ORDER BY created_at DESC`
	return r.list(ctx, query, now)
}

func (r *PromoRepo) list(ctx context.Context, query string, args ...any) ([]models.PromoCode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promos := []models.PromoCode{}
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, *p)
	}
	return promos, rows.Err()
}

func (r *PromoRepo) Create(ctx context.Context, p *models.PromoCode) error {
	query := `
		INSERT INTO promo_codes
		(id, code, description, discount_type, discount_value, min_order_amount, max_discount,
		 usage_limit, used_count, valid_from, valid_until, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.Code,
		p.Description,
		p.DiscountType,
		p.DiscountValue,
		nullInt64(p.MinOrderAmount),
		nullInt64(p.MaxDiscount),
		nullInt(p.UsageLimit),
		p.UsedCount,
		p.ValidFrom,
		p.ValidUntil,
		p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// Update writes the mutable fields of p. Code, type and used_count are not
// touched.
func (r *PromoRepo) Update(ctx context.Context, p *models.PromoCode) error {
	query := `
		UPDATE promo_codes
		SET description = $2, discount_value = $3, min_order_amount = $4, max_discount = $5,
		    usage_limit = $6, valid_from = $7, valid_until = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.Description,
		p.DiscountValue,
		nullInt64(p.MinOrderAmount),
		nullInt64(p.MaxDiscount),
		nullInt(p.UsageLimit),
		p.ValidFrom,
		p.ValidUntil,
		p.IsActive,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *PromoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
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

// IncrementUsage bumps used_count inside the checkout transaction.
func (r *PromoRepo) IncrementUsage(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count + 1,
		    updated_at = $2
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, query, id, time.Now().UTC())
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

func scanPromo(row scanner) (*models.PromoCode, error) {
	var (
		p          models.PromoCode
		minOrder   sql.NullInt64
		maxDisc    sql.NullInt64
		usageLimit sql.NullInt64
	)
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Description,
		&p.DiscountType,
		&p.DiscountValue,
		&minOrder,
		&maxDisc,
		&usageLimit,
		&p.UsedCount,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if minOrder.Valid {
		p.MinOrderAmount = &minOrder.Int64
	}
	if maxDisc.Valid {
		p.MaxDiscount = &maxDisc.Int64
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		p.UsageLimit = &n
	}
	return &p, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
