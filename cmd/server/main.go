package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MohamedNashad/seafood-node-api/config"
	"github.com/MohamedNashad/seafood-node-api/internal/api"
	"github.com/MohamedNashad/seafood-node-api/internal/auth"
	"github.com/MohamedNashad/seafood-node-api/internal/broker"
	"github.com/MohamedNashad/seafood-node-api/internal/mailer"
	"github.com/MohamedNashad/seafood-node-api/internal/redisclient"
	"github.com/MohamedNashad/seafood-node-api/internal/service"
	"github.com/MohamedNashad/seafood-node-api/internal/store"
	"github.com/MohamedNashad/seafood-node-api/internal/util"
	"github.com/MohamedNashad/seafood-node-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(util.LogConfig{Env: cfg.Server.Env, Level: cfg.Observ.LogLevel}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting seafood API")

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := db.Migrate(context.Background())
	if err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Database connected", zap.Strings("migrations_applied", applied))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)

	var dispatcher mailer.Dispatcher = mailer.Discard{}
	if cfg.Mail.Username != "" {
		dispatcher = mailer.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.From, cfg.Mail.Username, cfg.Mail.Password)
	} else {
		logger.Warn("SMTP not configured, outgoing mail is discarded")
	}

	tokenTTL := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, tokenTTL)

	access := service.NewAccessControl(db.RBAC())
	orderService := service.NewOrderService(db.Orders(), access, eventPublisher, cfg.Business.ShippingFlatFee)
	services := api.Services{
		Users:    service.NewUserService(db, access, dispatcher, tokens, cfg.Auth.BcryptCost),
		Access:   access,
		RBAC:     service.NewRBACService(db.RBAC(), access),
		Clients:  service.NewClientService(db, db, access),
		Products: service.NewProductService(db, access),
		Orders:   orderService,
		Payments: service.NewPaymentService(orderService, redisClient, eventPublisher, service.PaymentSettings{
			MerchantID:     cfg.Payment.MerchantID,
			MerchantSecret: cfg.Payment.MerchantSecret,
			Currency:       cfg.Payment.Currency,
			VerifyTimeout:  time.Duration(cfg.Payment.VerifyTimeoutSeconds) * time.Second,
		}),
		Carts: service.NewCartService(redisClient, db, time.Duration(cfg.Business.GuestCartTTLDays)*24*time.Hour),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, dispatcher, db)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, api.CookieSettings{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.IsProduction(),
		TTL:    tokenTTL,
	}, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
