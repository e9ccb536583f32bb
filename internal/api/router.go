package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/api/handlers"
	"github.com/Cheertaboi/meal-checkout-service/internal/api/middleware"
	"github.com/Cheertaboi/meal-checkout-service/pkg/metrics"
)

type Handlers struct {
	Checkout *handlers.CheckoutHandler
	Promo    *handlers.PromoHandler
	Loyalty  *handlers.LoyaltyHandler
}

// NewRouter builds the HTTP router for the checkout-service
func NewRouter(h Handlers, log *zap.Logger, m *metrics.ServerMetrics, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	// Customer endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCustomer)

		r.Post("/checkout/quote", h.Checkout.Quote)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Checkout.PlaceOrder)
			r.Get("/", h.Checkout.ListOrders)
			r.Get("/{id}", h.Checkout.GetOrder)
		})
		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/", h.Loyalty.Account)
			r.Post("/redeem", h.Loyalty.Redeem)
		})
		r.Post("/promo-codes/{code}/validate", h.Promo.ValidatePromo)
		r.Post("/promo-codes/applicable", h.Promo.ApplicablePromos)
	})

	// Public promo endpoints
	r.Get("/promo-codes/active", h.Promo.ListActive)

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)

		r.Route("/promo-codes", func(r chi.Router) {
			r.Post("/", h.Promo.CreatePromo)
			r.Get("/", h.Promo.ListPromos)
			r.Patch("/{id}", h.Promo.UpdatePromo)
			r.Delete("/{id}", h.Promo.DeletePromo)
		})
		r.Patch("/orders/{id}/status", h.Checkout.UpdateOrderStatus)
		r.Post("/loyalty/{ownerID}/award", h.Loyalty.Award)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	return r
}
