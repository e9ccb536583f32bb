package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/meal-checkout-service/internal/events"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

type fakePromoRepo struct {
	mu        sync.Mutex
	byCode    map[string]*models.PromoCode
	err       error
	increment []uuid.UUID
	listCalls int

	// lockErrs are returned, one per call, by GetByCodeForUpdate.
	lockErrs []error
}

func newFakePromoRepo(promos ...*models.PromoCode) *fakePromoRepo {
	r := &fakePromoRepo{byCode: map[string]*models.PromoCode{}}
	for _, p := range promos {
		r.byCode[p.Code] = p
	}
	return r
}

func (r *fakePromoRepo) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePromoRepo) GetByCodeForUpdate(ctx context.Context, _ *sql.Tx, code string) (*models.PromoCode, error) {
	r.mu.Lock()
	if len(r.lockErrs) > 0 {
		err := r.lockErrs[0]
		r.lockErrs = r.lockErrs[1:]
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()
	return r.GetByCode(ctx, code)
}

func (r *fakePromoRepo) GetByID(_ context.Context, id uuid.UUID) (*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCode {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePromoRepo) List(context.Context) ([]models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.PromoCode{}
	for _, p := range r.byCode {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePromoRepo) ListActive(_ context.Context, now time.Time) ([]models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := []models.PromoCode{}
	for _, p := range r.byCode {
		if p.IsActive && p.InWindow(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) Create(_ context.Context, p *models.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[p.Code]; ok {
		return repository.ErrDuplicateCode
	}
	cp := *p
	r.byCode[p.Code] = &cp
	return nil
}

func (r *fakePromoRepo) Update(_ context.Context, p *models.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[p.Code]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	r.byCode[p.Code] = &cp
	return nil
}

func (r *fakePromoRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, p := range r.byCode {
		if p.ID == id {
			delete(r.byCode, code)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakePromoRepo) IncrementUsage(_ context.Context, _ *sql.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increment = append(r.increment, id)
	for _, p := range r.byCode {
		if p.ID == id {
			p.UsedCount++
		}
	}
	return nil
}

type fakeLoyaltyRepo struct {
	accounts map[string]*models.LoyaltyAccount
	history  map[uuid.UUID][]models.PointsEntry
	debits   []int64
	credits  []int64
}

func newFakeLoyaltyRepo() *fakeLoyaltyRepo {
	return &fakeLoyaltyRepo{
		accounts: map[string]*models.LoyaltyAccount{},
		history:  map[uuid.UUID][]models.PointsEntry{},
	}
}

func (r *fakeLoyaltyRepo) withBalance(ownerID string, points int64) *fakeLoyaltyRepo {
	r.accounts[ownerID] = &models.LoyaltyAccount{ID: uuid.New(), OwnerID: ownerID, Points: points}
	return r
}

func (r *fakeLoyaltyRepo) GetOrCreate(_ context.Context, ownerID string) (*models.LoyaltyAccount, error) {
	acc, ok := r.accounts[ownerID]
	if !ok {
		acc = &models.LoyaltyAccount{ID: uuid.New(), OwnerID: ownerID}
		r.accounts[ownerID] = acc
	}
	cp := *acc
	return &cp, nil
}

func (r *fakeLoyaltyRepo) Balance(ctx context.Context, ownerID string) (int64, error) {
	acc, err := r.GetOrCreate(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return acc.Points, nil
}

func (r *fakeLoyaltyRepo) History(_ context.Context, accountID uuid.UUID) ([]models.PointsEntry, error) {
	return r.history[accountID], nil
}

func (r *fakeLoyaltyRepo) GetAndLockAccount(ctx context.Context, _ *sql.Tx, ownerID string) (*models.LoyaltyAccount, error) {
	return r.GetOrCreate(ctx, ownerID)
}

func (r *fakeLoyaltyRepo) account(id uuid.UUID) *models.LoyaltyAccount {
	for _, acc := range r.accounts {
		if acc.ID == id {
			return acc
		}
	}
	return nil
}

func (r *fakeLoyaltyRepo) Debit(_ context.Context, _ *sql.Tx, accountID uuid.UUID, points int64) (int64, error) {
	acc := r.account(accountID)
	if acc == nil || acc.Points < points {
		return 0, repository.ErrBalanceTooLow
	}
	acc.Points -= points
	r.debits = append(r.debits, points)
	return acc.Points, nil
}

func (r *fakeLoyaltyRepo) Credit(_ context.Context, _ *sql.Tx, accountID uuid.UUID, points int64) (int64, error) {
	acc := r.account(accountID)
	if acc == nil {
		return 0, repository.ErrNotFound
	}
	acc.Points += points
	r.credits = append(r.credits, points)
	return acc.Points, nil
}

func (r *fakeLoyaltyRepo) AppendHistory(_ context.Context, _ *sql.Tx, accountID uuid.UUID, e models.PointsEntry) error {
	r.history[accountID] = append([]models.PointsEntry{e}, r.history[accountID]...)
	return nil
}

type fakeMealRepo map[string]models.Meal

func (r fakeMealRepo) GetByIDs(_ context.Context, ids []string) (map[string]models.Meal, error) {
	out := map[string]models.Meal{}
	for _, id := range ids {
		if m, ok := r[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	created []*models.Order
	byID    map[uuid.UUID]*models.Order
}

func (r *fakeOrderRepo) Create(_ context.Context, _ *sql.Tx, o *models.Order) error {
	if _, ok := r.byID[o.ID]; ok {
		return repository.ErrDuplicateOrder
	}
	o.CreatedAt = testNow
	r.created = append(r.created, o)
	if r.byID == nil {
		r.byID = map[uuid.UUID]*models.Order{}
	}
	r.byID[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	out := []models.Order{}
	for i := len(r.created) - 1; i >= 0; i-- {
		if r.created[i].CustomerID == customerID {
			out = append(out, *r.created[i])
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	o, ok := r.byID[id]
	if !ok || o.Status != from {
		return repository.ErrNotFound
	}
	o.Status = to
	return nil
}

type fakeGateway struct {
	requests []models.IntentRequest
	err      error
}

func (g *fakeGateway) CreateIntent(_ context.Context, req models.IntentRequest) (*models.Intent, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &models.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

type fakePublisher struct {
	events []events.OrderConfirmed
}

func (p *fakePublisher) PublishOrderConfirmed(_ context.Context, evt events.OrderConfirmed) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
