package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinova/booking-api/config"
	"github.com/clinova/booking-api/internal/email"
	"github.com/clinova/booking-api/internal/gateway"
	bookingHandler "github.com/clinova/booking-api/internal/handler/booking"
	healthHandler "github.com/clinova/booking-api/internal/handler/health"
	webhookHandler "github.com/clinova/booking-api/internal/handler/webhook"
	"github.com/clinova/booking-api/internal/middleware"
	"github.com/clinova/booking-api/internal/repository/postgres"
	"github.com/clinova/booking-api/internal/router"
	bookingService "github.com/clinova/booking-api/internal/service/booking"
	notificationService "github.com/clinova/booking-api/internal/service/notification"
	paymentService "github.com/clinova/booking-api/internal/service/payment"
	"github.com/clinova/booking-api/internal/worker"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/messaging"
	"github.com/clinova/booking-api/pkg/messaging/redis"
	"github.com/clinova/booking-api/pkg/metrics"
	"github.com/clinova/booking-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("booking", "api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(db)
	directoryRepo := postgres.NewDirectoryRepository(db)

	// Broker is optional; the API runs without event publishing.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &appLogger.ZL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, events disabled")
		} else {
			defer broker.Close()
		}
	}

	emailSvc := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		Enabled:  cfg.Email.Enabled,
	}, appLogger)

	notifier := notificationService.NewService(appointmentRepo, directoryRepo, emailSvc, broker, appLogger)

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL,
		CheckoutURL:     cfg.Gateway.CheckoutURL,
		PublicKey:       cfg.Gateway.PublicKey,
		PrivateKey:      cfg.Gateway.PrivateKey,
		MerchantID:      cfg.Gateway.MerchantID,
		Currency:        cfg.Gateway.Currency,
		TestMode:        cfg.Gateway.TestMode,
		ResponseURL:     cfg.Gateway.ResponseURL,
		ConfirmationURL: cfg.Gateway.ConfirmationURL,
		TokenTTL:        cfg.Gateway.TokenTTL,
		TokenTTLMargin:  cfg.Gateway.TokenTTLMargin,
		RequestTimeout:  cfg.Gateway.RequestTimeout,
		MaxRetries:      cfg.Gateway.MaxRetries,
	}, appLogger, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway client")
	}

	// Services
	bookingSvc := bookingService.NewService(bookingService.Config{
		QuantumMins:     cfg.Booking.QuantumMins,
		MinDurationMins: cfg.Booking.MinDurationMins,
		MaxDurationMins: cfg.Booking.MaxDurationMins,
		Currency:        cfg.Gateway.Currency,
	}, appointmentRepo, availabilityRepo, paymentRepo, directoryRepo, gatewayClient, notifier, appLogger)

	paymentSvc := paymentService.NewService(paymentRepo, notifier, appLogger, appMetrics, cfg.Gateway.MerchantID, cfg.Gateway.PrivateKey)

	// Handlers
	v := validator.New()
	bookingH := bookingHandler.NewHandler(bookingSvc, v)
	webhookH := webhookHandler.NewHandler(paymentSvc)
	healthH := healthHandler.NewHandler(db)

	r := router.NewRouter(bookingH, webhookH, healthH, router.RouterConfig{
		RateLimit: rateLimitFromConfig(cfg),
		RateBurst: cfg.RateLimit.Burst,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins:     corsOrigins(cfg),
			AllowMethods:     cfg.Security.AllowedMethods,
			AllowHeaders:     cfg.Security.AllowedHeaders,
			AllowCredentials: true,
			MaxAge:           86400,
		},
		MetricsPrefix: "booking_api",
	})
	r.Setup()

	// The reconciliation poller also runs in-process so webhook loss is
	// recovered even when the standalone worker is down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := worker.NewPoller(paymentRepo, gatewayClient, paymentSvc, worker.PollerConfig{
		PollInterval: cfg.Scheduler.PollInterval,
		GraceWindow:  cfg.Scheduler.GraceWindow,
		BatchSize:    cfg.Scheduler.BatchSize,
	}, appLogger, appMetrics)
	go poller.Start(ctx)

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func rateLimitFromConfig(cfg *config.Config) rate.Limit {
	if !cfg.RateLimit.Enabled {
		return 0
	}
	return rate.Limit(cfg.RateLimit.RequestsPerSecond)
}

func corsOrigins(cfg *config.Config) []string {
	if len(cfg.Security.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.Security.AllowedOrigins
}
