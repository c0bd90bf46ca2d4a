package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/clinova/booking-api/config"
	"github.com/clinova/booking-api/internal/email"
	"github.com/clinova/booking-api/internal/gateway"
	"github.com/clinova/booking-api/internal/repository/postgres"
	notificationService "github.com/clinova/booking-api/internal/service/notification"
	paymentService "github.com/clinova/booking-api/internal/service/payment"
	"github.com/clinova/booking-api/internal/worker"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/messaging"
	"github.com/clinova/booking-api/pkg/messaging/redis"
	"github.com/clinova/booking-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("booking", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	directoryRepo := postgres.NewDirectoryRepository(db)

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
		BaseURL:        cfg.Gateway.BaseURL,
		CheckoutURL:    cfg.Gateway.CheckoutURL,
		PublicKey:      cfg.Gateway.PublicKey,
		PrivateKey:     cfg.Gateway.PrivateKey,
		MerchantID:     cfg.Gateway.MerchantID,
		Currency:       cfg.Gateway.Currency,
		TestMode:       cfg.Gateway.TestMode,
		TokenTTL:       cfg.Gateway.TokenTTL,
		TokenTTLMargin: cfg.Gateway.TokenTTLMargin,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		MaxRetries:     cfg.Gateway.MaxRetries,
	}, appLogger, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway client")
	}

	paymentSvc := paymentService.NewService(paymentRepo, notifier, appLogger, appMetrics, cfg.Gateway.MerchantID, cfg.Gateway.PrivateKey)

	poller := worker.NewPoller(paymentRepo, gatewayClient, paymentSvc, worker.PollerConfig{
		PollInterval: cfg.Scheduler.PollInterval,
		GraceWindow:  cfg.Scheduler.GraceWindow,
		BatchSize:    cfg.Scheduler.BatchSize,
	}, appLogger, appMetrics)

	sweeper := worker.NewSweeper(appointmentRepo, worker.SweeperConfig{
		SweepInterval: cfg.Scheduler.SweepInterval,
		ExpiryAfter:   cfg.Scheduler.ExpiryAfter,
	}, appLogger, appMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Health and metrics endpoint for the worker process
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	log.Info().Msg("reconciliation worker started")
	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("reconciliation worker stopped")
}
