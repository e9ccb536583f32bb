package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Cheertaboi/meal-checkout-service/internal/api"
	"github.com/Cheertaboi/meal-checkout-service/internal/api/handlers"
	"github.com/Cheertaboi/meal-checkout-service/internal/checkout"
	"github.com/Cheertaboi/meal-checkout-service/internal/config"
	"github.com/Cheertaboi/meal-checkout-service/internal/events"
	"github.com/Cheertaboi/meal-checkout-service/internal/logging"
	"github.com/Cheertaboi/meal-checkout-service/internal/payment"
	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
	"github.com/Cheertaboi/meal-checkout-service/internal/service"
	"github.com/Cheertaboi/meal-checkout-service/pkg/db"
	"github.com/Cheertaboi/meal-checkout-service/pkg/metrics"
)

const serviceName = "checkout-service"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, serviceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("checkout-service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.NewPostgresConnection(startCtx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer conn.Close()

	applied, err := db.Migrate(startCtx, conn)
	if err != nil {
		return err
	}
	for _, name := range applied {
		logger.Info("migration applied", zap.String("file", name))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, "api")

	publisher, err := events.New(events.Options{
		Backend:      cfg.Events.Backend,
		KafkaBrokers: cfg.Events.KafkaBrokers,
		KafkaTopic:   cfg.Events.KafkaTopic,
		AMQPURL:      cfg.Events.AMQPURL,
		AMQPExchange: cfg.Events.AMQPExchange,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; payment intents will fail")
	}

	promoRepo := repository.NewPromoRepo(conn)
	loyaltyRepo := repository.NewLoyaltyRepo(conn)

	checkoutSvc := service.NewCheckoutService(service.CheckoutDeps{
		DB:              conn,
		Engine:          checkout.NewEngine(cfg.Checkout.RedemptionRate),
		Meals:           repository.NewMealRepo(conn),
		Promos:          promoRepo,
		Loyalty:         loyaltyRepo,
		Orders:          repository.NewOrderRepo(conn),
		Gateway:         payment.NewStripeGateway(cfg.Stripe.SecretKey),
		Publisher:       publisher,
		Metrics:         m,
		Logger:          logger,
		DefaultCurrency: cfg.Checkout.DefaultCurrency,
		Timeout:         cfg.Checkout.Timeout,
	})
	promoSvc := service.NewPromoService(promoRepo, cfg.PromoCacheTTL)
	loyaltySvc := service.NewLoyaltyService(conn, loyaltyRepo, cfg.Checkout.RedemptionRate, logger)

	handler := api.NewRouter(api.Handlers{
		Checkout: handlers.NewCheckoutHandler(checkoutSvc, logger),
		Promo:    handlers.NewPromoHandler(promoSvc, logger),
		Loyalty:  handlers.NewLoyaltyHandler(loyaltySvc, logger),
	}, logger, m, reg)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Checkout.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	logger.Info("starting checkout-service", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-idleConnsClosed
	logger.Info("server stopped")
	return nil
}
