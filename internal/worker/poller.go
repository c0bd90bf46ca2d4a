// Package worker runs the reconciliation loops: polling the gateway for
// stuck payment sessions and sweeping expired unpaid bookings.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/clinova/booking-api/internal/gateway"
	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/repository"
	"github.com/clinova/booking-api/internal/service/payment"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/metrics"
)

// GatewayPoller is the slice of the gateway client the poller needs.
type GatewayPoller interface {
	PollStatus(ctx context.Context, sessionID string) (*gateway.PollResult, error)
}

type PollerConfig struct {
	PollInterval time.Duration
	GraceWindow  time.Duration
	BatchSize    int
}

// Poller periodically asks the gateway about payment sessions that have been
// pending longer than the grace window and hands terminal answers to the
// reconciler. Webhook loss is recovered here.
type Poller struct {
	payments   repository.PaymentRepository
	gateway    GatewayPoller
	reconciler *payment.Service
	config     PollerConfig
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewPoller(payments repository.PaymentRepository, gw GatewayPoller, reconciler *payment.Service, config PollerConfig, log *logger.Logger, m *metrics.Metrics) *Poller {
	// Config validation instead of defaults
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.GraceWindow <= 0 {
		panic("GraceWindow must be greater than 0")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}

	return &Poller{
		payments:   payments,
		gateway:    gw,
		reconciler: reconciler,
		config:     config,
		logger:     log,
		metrics:    m,
	}
}

func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting payment poller")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down payment poller")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to poll payment sessions")
			}
		}
	}
}

// pollOnce processes one batch. Gateway failures on individual sessions are
// logged and left for the next tick; they never block the rest of the batch.
func (p *Poller) pollOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-p.config.GraceWindow)
	sessions, err := p.payments.ListStalePending(ctx, cutoff, p.config.BatchSize)
	if err != nil {
		if p.metrics != nil {
			p.metrics.DatabaseOperations.WithLabelValues("list_stale_pending", "error").Inc()
		}
		return fmt.Errorf("failed to list pending sessions: %w", err)
	}
	if p.metrics != nil {
		p.metrics.DatabaseOperations.WithLabelValues("list_stale_pending", "success").Inc()
	}

	for _, session := range sessions {
		if err := p.pollSession(ctx, session); err != nil {
			p.logger.Error(err, "Failed to poll session",
				"session_id", session.ID.String(),
				"appointment_id", session.AppointmentID.String())
		}
	}
	return nil
}

func (p *Poller) pollSession(ctx context.Context, session *model.PaymentSession) error {
	if p.metrics != nil {
		p.metrics.SessionsPolled.Inc()
	}

	result, err := p.gateway.PollStatus(ctx, session.GatewaySessionID)
	if err != nil {
		// Transient or not, the session stays pending for the next tick.
		return err
	}

	if !result.Outcome.Terminal() {
		return nil
	}

	_, err = p.reconciler.Apply(ctx, &model.OutcomeRecord{
		AppointmentID: session.AppointmentID,
		Outcome:       result.Outcome,
		GatewayRef:    result.GatewayRef,
		GatewayTxID:   result.GatewayTxID,
		ResponseCode:  result.ResponseCode,
		Message:       result.Message,
	})
	return err
}
