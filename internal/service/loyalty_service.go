package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
)

var ErrInvalidPoints = errors.New("points must be positive")

type LoyaltyService struct {
	db   *sql.DB
	repo LoyaltyRepo
	rate int64
	log  *zap.Logger
	now  func() time.Time
}

func NewLoyaltyService(db *sql.DB, repo LoyaltyRepo, rate int64, log *zap.Logger) *LoyaltyService {
	if rate <= 0 {
		rate = checkout.DefaultRedemptionRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoyaltyService{db: db, repo: repo, rate: rate, log: log, now: time.Now}
}

// Account returns the owner's account with its history, newest first,
// creating an empty account on first access.
func (s *LoyaltyService) Account(ctx context.Context, ownerID string) (*models.LoyaltyAccount, error) {
	acc, err := s.repo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	acc.History = history
	return acc, nil
}

// Redeem spends points outside of a checkout and returns the discount they
// are worth.
func (s *LoyaltyService) Redeem(ctx context.Context, ownerID string, points int64) (*models.RedemptionResult, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}
	discount := checkout.RedemptionValue(points, s.rate)

	var remaining int64
	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		acc, err := s.repo.GetAndLockAccount(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if acc.Points < points {
			return fmt.Errorf("%w: have %d, need %d", checkout.ErrInsufficientPoints, acc.Points, points)
		}

		remaining, err = s.repo.Debit(ctx, tx, acc.ID, points)
		if err != nil {
			if errors.Is(err, repository.ErrBalanceTooLow) {
				return checkout.ErrInsufficientPoints
			}
			return err
		}
		return s.repo.AppendHistory(ctx, tx, acc.ID, models.PointsEntry{
			ID:          uuid.New(),
			Points:      points,
			Type:        models.PointsRedeemed,
			Description: fmt.Sprintf("Redeemed %d points for %d discount", points, discount),
			CreatedAt:   s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loyalty points redeemed",
		zap.String("owner_id", ownerID),
		zap.Int64("points", points),
		zap.Int64("discount", discount),
		zap.Int64("remaining", remaining))
	return &models.RedemptionResult{RemainingPoints: remaining, DiscountAmount: discount}, nil
}

// Award credits earned points and returns the new balance.
func (s *LoyaltyService) Award(ctx context.Context, ownerID string, points int64, description string) (int64, error) {
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	if description == "" {
		description = fmt.Sprintf("Earned %d points", points)
	}

	var balance int64
	err := withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		acc, err := s.repo.GetAndLockAccount(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		balance, err = s.repo.Credit(ctx, tx, acc.ID, points)
		if err != nil {
			return err
		}
		return s.repo.AppendHistory(ctx, tx, acc.ID, models.PointsEntry{
			ID:          uuid.New(),
			Points:      points,
			Type:        models.PointsEarned,
			Description: description,
			CreatedAt:   s.now(),
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("loyalty points awarded",
		zap.String("owner_id", ownerID),
		zap.Int64("points", points),
		zap.Int64("balance", balance))
	return balance, nil
}
