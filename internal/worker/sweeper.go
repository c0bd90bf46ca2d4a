package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/clinova/booking-api/internal/repository"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/metrics"
)

type SweeperConfig struct {
	SweepInterval time.Duration
	ExpiryAfter   time.Duration
}

// Sweeper cancels appointments that have sat in pending_payment past the
// expiry deadline. Session state is left to the reconciler; the sweep only
// frees the calendar slot.
type Sweeper struct {
	appointments repository.AppointmentRepository
	config       SweeperConfig
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewSweeper(appointments repository.AppointmentRepository, config SweeperConfig, log *logger.Logger, m *metrics.Metrics) *Sweeper {
	if config.SweepInterval <= 0 {
		panic("SweepInterval must be greater than 0")
	}
	if config.ExpiryAfter <= 0 {
		panic("ExpiryAfter must be greater than 0")
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}

	return &Sweeper{
		appointments: appointments,
		config:       config,
		logger:       log,
		metrics:      m,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("Starting expiry sweeper")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down expiry sweeper")
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Error(err, "Failed to sweep expired appointments")
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.ExpiryAfter)
	expired, err := s.appointments.ExpirePending(ctx, cutoff)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DatabaseOperations.WithLabelValues("expire_pending", "error").Inc()
		}
		return fmt.Errorf("failed to expire pending appointments: %w", err)
	}
	if s.metrics != nil {
		s.metrics.DatabaseOperations.WithLabelValues("expire_pending", "success").Inc()
		s.metrics.SessionsExpired.Add(float64(expired))
	}

	if expired > 0 {
		s.logger.Info("Expired unpaid appointments", "count", expired)
	}
	return nil
}
