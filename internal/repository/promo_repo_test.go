package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

var promoRowColumns = []string{
	"id", "code", "description", "discount_type", "discount_value",
	"min_order_amount", "max_discount", "usage_limit", "used_count",
	"valid_from", "valid_until", "is_active", "created_at", "updated_at",
}

func promoRow(id uuid.UUID, code string, minOrder, maxDisc, limit driver.Value) *sqlmock.Rows {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(promoRowColumns).AddRow(
		id.String(), code, "spring sale", "PERCENTAGE", int64(50),
		minOrder, maxDisc, limit, int64(2),
		from, from.AddDate(0, 6, 0), true, from, from,
	)
}

func TestPromoRepo_GetByCode(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM promo_codes WHERE code = \$1`).
		WithArgs("SPRING50").
		WillReturnRows(promoRow(id, "SPRING50", int64(500), int64(400), nil))

	p, err := NewPromoRepo(conn).GetByCode(context.Background(), "spring50")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, id, p.ID)
	assert.Equal(t, models.DiscountPercentage, p.DiscountType)
	require.NotNil(t, p.MinOrderAmount)
	assert.Equal(t, int64(500), *p.MinOrderAmount)
	require.NotNil(t, p.MaxDiscount)
	assert.Equal(t, int64(400), *p.MaxDiscount)
	assert.Nil(t, p.UsageLimit)
	assert.Equal(t, 2, p.UsedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoRepo_GetByCodeNotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`SELECT (.+) FROM promo_codes WHERE code = \$1`).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(promoRowColumns))

	p, err := NewPromoRepo(conn).GetByCode(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestPromoRepo_GetByCodeForUpdateLocksRow(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM promo_codes WHERE code = \$1 FOR UPDATE`).
		WithArgs("SPRING50").
		WillReturnRows(promoRow(id, "SPRING50", nil, nil, int64(10)))
	mock.ExpectRollback()

	tx, err := conn.Begin()
	require.NoError(t, err)
	p, err := NewPromoRepo(conn).GetByCodeForUpdate(context.Background(), tx, "Spring50")
	require.NoError(t, err)
	require.NotNil(t, p.UsageLimit)
	assert.Equal(t, 10, *p.UsageLimit)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoRepo_CreateDuplicate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("INSERT INTO promo_codes").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err = NewPromoRepo(conn).Create(context.Background(), &models.PromoCode{
		ID:            uuid.New(),
		Code:          "DUP",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 100,
	})
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestPromoRepo_IncrementUsage(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE promo_codes SET used_count = used_count \+ 1`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, NewPromoRepo(conn).IncrementUsage(context.Background(), tx, id))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoRepo_DeleteMissing(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM promo_codes WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewPromoRepo(conn).Delete(context.Background(), id), ErrNotFound)
}

func TestPromoRepo_ListActive(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := promoRow(uuid.New(), "A", nil, nil, nil)
	mock.ExpectQuery(`SELECT (.+) FROM promo_codes WHERE is_active`).
		WithArgs(now).
		WillReturnRows(rows)

	promos, err := NewPromoRepo(conn).ListActive(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, promos, 1)
	assert.Equal(t, "A", promos[0].Code)
}
