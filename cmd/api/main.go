package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/tripovia/travel-payments/internal/adapters/mongo"
	"github.com/tripovia/travel-payments/internal/adapters/postgres"
	redisadapter "github.com/tripovia/travel-payments/internal/adapters/redis"
	"github.com/tripovia/travel-payments/internal/config"
	httphandler "github.com/tripovia/travel-payments/internal/http"
	"github.com/tripovia/travel-payments/internal/idempotency"
	"github.com/tripovia/travel-payments/internal/identity"
	"github.com/tripovia/travel-payments/internal/observability"
	"github.com/tripovia/travel-payments/internal/payments"
	"github.com/tripovia/travel-payments/internal/provider"
	"github.com/tripovia/travel-payments/internal/provider/paypal"
	"github.com/tripovia/travel-payments/internal/provider/vnpay"
	"github.com/tripovia/travel-payments/internal/rateLimit"
	"github.com/tripovia/travel-payments/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	archive := mongoadapter.NewWebhookArchive(mongoClient.Database("travel"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	registry := provider.NewRegistry(
		vnpay.New(vnpay.Config{
			TmnCode:    cfg.VNPayTmnCode,
			HashSecret: cfg.VNPayHashSecret,
			PayURL:     cfg.VNPayPayURL,
		}),
		paypal.New(paypal.Config{
			ClientID:      cfg.PayPalClientID,
			Secret:        cfg.PayPalSecret,
			WebhookID:     cfg.PayPalWebhookID,
			WebhookSecret: cfg.PayPalWebhookSecret,
			BaseURL:       cfg.PayPalBaseURL,
			Environment:   cfg.Environment,
			Timeout:       cfg.GatewayTimeout,
		}, logger),
	)

	resolver := identity.NewLookup(repo)
	dispatcher := settlement.NewDispatcher(repo, resolver, redisCache, logger,
		settlement.NewRetailHandler(repo, logger),
		settlement.NewHotelHandler(repo, logger),
		settlement.NewFlightHandler(repo, logger),
		settlement.NewTransportHandler(repo, logger),
		settlement.NewEventHandler(repo, logger),
	)

	orch := payments.NewOrchestrator(registry, repo, archive, dispatcher, logger)
	handlers := httphandler.NewHandlers(orch, idemp, logger)

	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
