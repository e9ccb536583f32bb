package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cheertaboi/meal-checkout-service/internal/cache"
	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/concurrency"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
)

var (
	ErrPromoExists       = errors.New("promo code already exists")
	ErrInvalidPromo      = errors.New("invalid promo code")
	ErrPromoCodeNotFound = errors.New("promo code not found")
	ErrInvalidAmount     = errors.New("order amount must be positive")
)

const activePromosKey = "active"

type PromoService struct {
	repo    PromoRepo
	active  *cache.TTLCache[string, []models.PromoCode]
	workers int
	now     func() time.Time
}

func NewPromoService(repo PromoRepo, cacheTTL time.Duration) *PromoService {
	return &PromoService{
		repo:    repo,
		active:  cache.NewTTLCache[string, []models.PromoCode](cacheTTL),
		workers: 8,
		now:     time.Now,
	}
}

func (s *PromoService) Create(ctx context.Context, p *models.PromoCode) error {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if err := validatePromo(p); err != nil {
		return err
	}

	existing, err := s.repo.GetByCode(ctx, p.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrPromoExists
	}

	p.ID = uuid.New()
	p.UsedCount = 0
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return ErrPromoExists
		}
		return err
	}
	s.active.Invalidate()
	return nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.repo.List(ctx)
}

// ListActive returns active, in-window codes. Results are cached until the
// TTL expires or an admin write invalidates them.
func (s *PromoService) ListActive(ctx context.Context) ([]models.PromoCode, error) {
	if promos, ok := s.active.Get(activePromosKey); ok {
		return promos, nil
	}
	promos, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}
	s.active.Set(activePromosKey, promos)
	return promos, nil
}

func (s *PromoService) Update(ctx context.Context, id uuid.UUID, patch models.PromoCodePatch) (*models.PromoCode, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPromoCodeNotFound
	}

	patch.Apply(p)
	if err := validatePromo(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPromoCodeNotFound
		}
		return nil, err
	}
	s.active.Invalidate()
	return p, nil
}

func (s *PromoService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPromoCodeNotFound
		}
		return err
	}
	s.active.Invalidate()
	return nil
}

// Validate checks code against an order amount and previews the discount.
// Nothing is reserved; usage is only counted when an order commits.
func (s *PromoService) Validate(ctx context.Context, code string, orderAmount int64) (*models.PromoValidation, error) {
	if orderAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, checkout.ErrPromoNotFound
	}
	if err := checkout.ValidatePromo(p, orderAmount, s.now()); err != nil {
		return nil, err
	}
	return &models.PromoValidation{
		Code:     p.Code,
		Discount: checkout.DiscountFor(p, orderAmount),
		Message:  "Promo code applied successfully",
	}, nil
}

// Applicable returns the active codes that would give a discount on an
// order of orderAmount. It reads the repository directly: the cached list
// can lag behind used_count and would offer exhausted codes.
func (s *PromoService) Applicable(ctx context.Context, orderAmount int64) ([]models.PromoValidation, error) {
	if orderAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	promos, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}

	now := s.now()
	discounts := make([]int64, len(promos))
	concurrency.ForEach(ctx, s.workers, len(promos), func(_ context.Context, i int) {
		p := &promos[i]
		if checkout.ValidatePromo(p, orderAmount, now) != nil {
			return
		}
		discounts[i] = checkout.DiscountFor(p, orderAmount)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.PromoValidation, 0, len(promos))
	for i, d := range discounts {
		if d <= 0 {
			continue
		}
		out = append(out, models.PromoValidation{
			Code:     promos[i].Code,
			Discount: d,
			Message:  promos[i].Description,
		})
	}
	return out, nil
}

func validatePromo(p *models.PromoCode) error {
	switch {
	case p.Code == "":
		return fmt.Errorf("%w: code is required", ErrInvalidPromo)
	case !p.DiscountType.Valid():
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidPromo, p.DiscountType)
	case p.DiscountValue <= 0:
		return fmt.Errorf("%w: discount value must be positive", ErrInvalidPromo)
	case p.DiscountType == models.DiscountPercentage && p.DiscountValue > 100:
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidPromo)
	case p.MinOrderAmount != nil && *p.MinOrderAmount < 0:
		return fmt.Errorf("%w: minimum order amount cannot be negative", ErrInvalidPromo)
	case p.MaxDiscount != nil && *p.MaxDiscount < 0:
		return fmt.Errorf("%w: max discount cannot be negative", ErrInvalidPromo)
	case p.UsageLimit != nil && *p.UsageLimit < 0:
		return fmt.Errorf("%w: usage limit cannot be negative", ErrInvalidPromo)
	case !p.ValidUntil.After(p.ValidFrom):
		return fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidPromo)
	}
	return nil
}
