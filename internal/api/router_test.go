package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/api/handlers"
	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/models"
	"github.com/Cheertaboi/meal-checkout-service/internal/service"
	"github.com/Cheertaboi/meal-checkout-service/pkg/metrics"
)

type stubCheckout struct {
	customerID string
	key        string
	err        error
	order      *models.Order
	status     models.OrderStatus
}

func (s *stubCheckout) Quote(_ context.Context, customerID string, req models.PlaceOrderRequest) (*models.CheckoutResult, error) {
	s.customerID = customerID
	if s.err != nil {
		return nil, s.err
	}
	return &models.CheckoutResult{Subtotal: 1000, PromoDiscount: 400, FinalAmount: 600, Currency: "bdt"}, nil
}

func (s *stubCheckout) PlaceOrder(_ context.Context, customerID string, req models.PlaceOrderRequest, key string) (*models.CheckoutReceipt, error) {
	s.customerID = customerID
	s.key = key
	if s.err != nil {
		return nil, s.err
	}
	return &models.CheckoutReceipt{
		OrderID:         uuid.New(),
		Result:          models.CheckoutResult{Subtotal: 1000, FinalAmount: 600, Currency: "bdt"},
		PaymentIntentID: "pi_1",
		ClientSecret:    "pi_1_secret",
	}, nil
}

func (s *stubCheckout) GetOrder(_ context.Context, customerID string, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id || s.order.CustomerID != customerID {
		return nil, service.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *stubCheckout) ListOrders(_ context.Context, customerID string) ([]models.Order, error) {
	s.customerID = customerID
	if s.order == nil || s.order.CustomerID != customerID {
		return []models.Order{}, nil
	}
	return []models.Order{*s.order}, nil
}

func (s *stubCheckout) UpdateOrderStatus(_ context.Context, id uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	if s.order == nil || s.order.ID != id {
		return nil, service.ErrOrderNotFound
	}
	o := *s.order
	o.Status = status
	return &o, nil
}

type stubPromo struct {
	created *models.PromoCode
	patch   *models.PromoCodePatch
	err     error
}

func (s *stubPromo) Create(_ context.Context, p *models.PromoCode) error {
	if s.err != nil {
		return s.err
	}
	p.ID = uuid.New()
	s.created = p
	return nil
}

func (s *stubPromo) List(context.Context) ([]models.PromoCode, error) {
	return []models.PromoCode{{Code: "HALF"}}, nil
}

func (s *stubPromo) ListActive(context.Context) ([]models.PromoCode, error) {
	return []models.PromoCode{{Code: "HALF", IsActive: true}}, nil
}

func (s *stubPromo) Update(_ context.Context, id uuid.UUID, patch models.PromoCodePatch) (*models.PromoCode, error) {
	s.patch = &patch
	return nil, service.ErrPromoCodeNotFound
}

func (s *stubPromo) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubPromo) Validate(_ context.Context, code string, amount int64) (*models.PromoValidation, error) {
	if amount <= 0 {
		return nil, service.ErrInvalidAmount
	}
	if code != "HALF" {
		return nil, checkout.ErrPromoNotFound
	}
	if amount < 800 {
		return nil, fmt.Errorf("%w: minimum order amount of 800 required", checkout.ErrPromoMinimumNotMet)
	}
	return &models.PromoValidation{Code: code, Discount: amount / 2, Message: "ok"}, nil
}

func (s *stubPromo) Applicable(_ context.Context, amount int64) ([]models.PromoValidation, error) {
	if amount <= 0 {
		return nil, service.ErrInvalidAmount
	}
	return []models.PromoValidation{{Code: "FLAT100", Discount: 100}}, nil
}

type stubLoyalty struct{}

func (stubLoyalty) Account(_ context.Context, ownerID string) (*models.LoyaltyAccount, error) {
	return &models.LoyaltyAccount{OwnerID: ownerID, Points: 120, History: []models.PointsEntry{}}, nil
}

func (stubLoyalty) Redeem(_ context.Context, ownerID string, points int64) (*models.RedemptionResult, error) {
	if points > 120 {
		return nil, fmt.Errorf("%w: have 120, need %d", checkout.ErrInsufficientPoints, points)
	}
	return &models.RedemptionResult{RemainingPoints: 120 - points, DiscountAmount: points / 10}, nil
}

func (stubLoyalty) Award(_ context.Context, ownerID string, points int64, _ string) (int64, error) {
	return 120 + points, nil
}

type routerFixture struct {
	handler  http.Handler
	checkout *stubCheckout
	promo    *stubPromo
	metrics  *metrics.ServerMetrics
}

func newRouterFixture() *routerFixture {
	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	f := &routerFixture{
		checkout: &stubCheckout{},
		promo:    &stubPromo{},
		metrics:  metrics.NewServerMetrics(reg, "test"),
	}
	f.handler = NewRouter(Handlers{
		Checkout: handlers.NewCheckoutHandler(f.checkout, log),
		Promo:    handlers.NewPromoHandler(f.promo, log),
		Loyalty:  handlers.NewLoyaltyHandler(stubLoyalty{}, log),
	}, log, f.metrics, reg)
	return f
}

func (f *routerFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

var customer = map[string]string{"X-Customer-ID": "cust-1"}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := newRouterFixture().do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCustomerRoutesRequireCustomerID(t *testing.T) {
	f := newRouterFixture()
	rec := f.do(http.MethodPost, "/checkout/quote", `{"items":[{"meal_id":"m1","quantity":1}]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "customer id required", decodeBody(t, rec)["error"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(http.MethodGet, "/admin/promo-codes", "", customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/admin/promo-codes", "", map[string]string{"X-Role": "ADMIN"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuote(t *testing.T) {
	f := newRouterFixture()
	rec := f.do(http.MethodPost, "/checkout/quote", `{"items":[{"meal_id":"m1","quantity":4}],"promo_code":"HALF"}`, customer)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 600, body["final_amount"])
	assert.Equal(t, "cust-1", f.checkout.customerID)
}

func TestPlaceOrder(t *testing.T) {
	f := newRouterFixture()
	headers := map[string]string{"X-Customer-ID": "cust-1", "Idempotency-Key": "abc-123"}
	rec := f.do(http.MethodPost, "/orders", `{"items":[{"meal_id":"m1","quantity":4}],"delivery_address":"Road 3"}`, headers)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "pi_1_secret", body["client_secret"])
	assert.Equal(t, "abc-123", f.checkout.key)
}

func TestPlaceOrderRequiresAddress(t *testing.T) {
	rec := newRouterFixture().do(http.MethodPost, "/orders", `{"items":[{"meal_id":"m1","quantity":1}]}`, customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{checkout.ErrPromoExpired, http.StatusBadRequest, "promo_code_expired"},
		{checkout.ErrPromoNotFound, http.StatusNotFound, "promo_code_not_found"},
		{fmt.Errorf("%w: have 3, need 9", checkout.ErrInsufficientPoints), http.StatusBadRequest, "insufficient_points"},
		{fmt.Errorf("%w: card declined", checkout.ErrPaymentGateway), http.StatusBadGateway, "payment_failed"},
		{service.ErrMealUnavailable, http.StatusBadRequest, "meal_unavailable"},
		{fmt.Errorf("%w: pq: could not serialize access", service.ErrConcurrentUpdate), http.StatusConflict, "checkout_conflict"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			f := newRouterFixture()
			f.checkout.err = tt.err

			rec := f.do(http.MethodPost, "/orders", `{"items":[{"meal_id":"m1","quantity":1}],"delivery_address":"Road 3"}`, customer)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	f := newRouterFixture()
	f.checkout.err = fmt.Errorf("pq: password authentication failed")

	rec := f.do(http.MethodPost, "/checkout/quote", `{"items":[{"meal_id":"m1","quantity":1}]}`, customer)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestGetOrder(t *testing.T) {
	f := newRouterFixture()
	f.checkout.order = &models.Order{ID: uuid.New(), CustomerID: "cust-1", TotalAmount: 600}

	rec := f.do(http.MethodGet, "/orders/"+f.checkout.order.ID.String(), "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 600, decodeBody(t, rec)["total_amount"])

	rec = f.do(http.MethodGet, "/orders/"+f.checkout.order.ID.String(), "", map[string]string{"X-Customer-ID": "cust-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/orders/not-a-uuid", "", customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidatePromo(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(http.MethodPost, "/promo-codes/HALF/validate", `{"order_amount":1000}`, customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 500, decodeBody(t, rec)["discount"])

	rec = f.do(http.MethodPost, "/promo-codes/HALF/validate", `{"order_amount":500}`, customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "minimum_order_not_met", body["error"])
	assert.Contains(t, body["detail"], "minimum order amount of 800 required")
}

func TestApplicableAndActivePromos(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(http.MethodPost, "/promo-codes/applicable", `{"order_amount":600}`, customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FLAT100")

	rec = f.do(http.MethodGet, "/promo-codes/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HALF")
}

func TestCreatePromo(t *testing.T) {
	f := newRouterFixture()
	admin := map[string]string{"X-Role": "ADMIN"}

	rec := f.do(http.MethodPost, "/admin/promo-codes",
		`{"code":"half","discount_type":"PERCENTAGE","discount_value":50,"max_discount":400,"valid_until":"2030-01-01T00:00:00Z"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.promo.created)
	assert.True(t, f.promo.created.IsActive)
	assert.Equal(t, int64(400), *f.promo.created.MaxDiscount)

	rec = f.do(http.MethodPost, "/admin/promo-codes", `{"code":"x","discount_type":"FIXED","discount_value":5,"valid_until":"tomorrow"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.promo.err = service.ErrPromoExists
	rec = f.do(http.MethodPost, "/admin/promo-codes", `{"code":"half","discount_type":"FIXED","discount_value":5,"valid_until":"2030-01-01T00:00:00Z"}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateAndDeletePromo(t *testing.T) {
	f := newRouterFixture()
	admin := map[string]string{"X-Role": "ADMIN"}
	path := "/admin/promo-codes/" + uuid.NewString()

	rec := f.do(http.MethodPatch, path, `{"is_active":false}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, path, "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdatePromoAcceptsClearFlags(t *testing.T) {
	f := newRouterFixture()
	path := "/admin/promo-codes/" + uuid.NewString()

	f.do(http.MethodPatch, path, `{"clear_usage_limit":true,"clear_max_discount":true}`, map[string]string{"X-Role": "ADMIN"})
	require.NotNil(t, f.promo.patch)
	assert.True(t, f.promo.patch.ClearUsageLimit)
	assert.True(t, f.promo.patch.ClearMaxDiscount)
	assert.False(t, f.promo.patch.ClearMinOrderAmount)
}

func TestNonPositiveOrderAmount(t *testing.T) {
	f := newRouterFixture()

	for _, path := range []string{"/promo-codes/HALF/validate", "/promo-codes/applicable"} {
		rec := f.do(http.MethodPost, path, `{"order_amount":0}`, customer)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_order_amount", decodeBody(t, rec)["error"], path)
	}
}

func TestListOrders(t *testing.T) {
	f := newRouterFixture()
	f.checkout.order = &models.Order{ID: uuid.New(), CustomerID: "cust-1", Status: models.OrderPending}

	rec := f.do(http.MethodGet, "/orders", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	var body handlers.OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Orders, 1)
	assert.Equal(t, f.checkout.order.ID, body.Orders[0].ID)
	assert.Equal(t, "cust-1", f.checkout.customerID)

	rec = f.do(http.MethodGet, "/orders", "", map[string]string{"X-Customer-ID": "cust-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	admin := map[string]string{"X-Role": "ADMIN"}
	id := uuid.New()
	path := "/admin/orders/" + id.String() + "/status"

	t.Run("moves the order", func(t *testing.T) {
		f := newRouterFixture()
		f.checkout.order = &models.Order{ID: id, CustomerID: "cust-1", Status: models.OrderPending}

		rec := f.do(http.MethodPatch, path, `{"status":"preparing"}`, admin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "PREPARING", decodeBody(t, rec)["status"])
		assert.Equal(t, models.OrderPreparing, f.checkout.status)
	})

	t.Run("admin only", func(t *testing.T) {
		rec := newRouterFixture().do(http.MethodPatch, path, `{"status":"READY"}`, customer)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := newRouterFixture().do(http.MethodPatch, "/admin/orders/nope/status", `{"status":"READY"}`, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	errCases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{service.ErrInvalidOrderStatus, http.StatusBadRequest, "invalid_order_status"},
		{service.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
		{service.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	}
	for _, tt := range errCases {
		t.Run(tt.wantCode, func(t *testing.T) {
			f := newRouterFixture()
			f.checkout.err = tt.err

			rec := f.do(http.MethodPatch, path, `{"status":"DELIVERED"}`, admin)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestLoyaltyRoutes(t *testing.T) {
	f := newRouterFixture()

	rec := f.do(http.MethodGet, "/loyalty", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust-1", decodeBody(t, rec)["owner_id"])

	rec = f.do(http.MethodPost, "/loyalty/redeem", `{"points":100}`, customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, decodeBody(t, rec)["discount_amount"])

	rec = f.do(http.MethodPost, "/loyalty/redeem", `{"points":500}`, customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/admin/loyalty/cust-7/award", `{"points":30}`, map[string]string{"X-Role": "ADMIN"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 150, decodeBody(t, rec)["points"])
}

func TestRejectsUnknownFields(t *testing.T) {
	rec := newRouterFixture().do(http.MethodPost, "/loyalty/redeem", `{"points":1,"bonus":true}`, customer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decodeBody(t, rec)["error"])
}

func TestRequestMetrics(t *testing.T) {
	f := newRouterFixture()
	f.checkout.order = &models.Order{ID: uuid.New(), CustomerID: "cust-1"}
	f.do(http.MethodGet, "/orders/"+f.checkout.order.ID.String(), "", customer)

	got := testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/orders/{id}", http.MethodGet, "200"))
	assert.Equal(t, 1.0, got)

	rec := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checkout_test_http_requests_total")
}
