package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Cheertaboi/meal-checkout-service/internal/models"
)

// Repos required by the services. Methods taking a *sql.Tx run inside the
// caller's transaction.

type PromoRepo interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetByCodeForUpdate(ctx context.Context, tx *sql.Tx, code string) (*models.PromoCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	ListActive(ctx context.Context, now time.Time) ([]models.PromoCode, error)
	Create(ctx context.Context, p *models.PromoCode) error
	Update(ctx context.Context, p *models.PromoCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementUsage(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type LoyaltyRepo interface {
	GetOrCreate(ctx context.Context, ownerID string) (*models.LoyaltyAccount, error)
	Balance(ctx context.Context, ownerID string) (int64, error)
	History(ctx context.Context, accountID uuid.UUID) ([]models.PointsEntry, error)
	GetAndLockAccount(ctx context.Context, tx *sql.Tx, ownerID string) (*models.LoyaltyAccount, error)
	Debit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, points int64) (int64, error)
	Credit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, points int64) (int64, error)
	AppendHistory(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, e models.PointsEntry) error
}

type MealRepo interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Meal, error)
}

type OrderRepo interface {
	Create(ctx context.Context, tx *sql.Tx, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
}
