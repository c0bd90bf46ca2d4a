// Package payment reconciles gateway outcomes with booking state. Outcomes
// arrive over two channels, webhook push and status polling, and both funnel
// into Apply so every decision runs through the same guards.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/repository"
	apperrors "github.com/clinova/booking-api/pkg/errors"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/metrics"
)

// Notifier delivers best-effort notifications after an outcome is committed.
// Failures are the notifier's problem; they never unwind billing.
type Notifier interface {
	PaymentOutcome(ctx context.Context, appointmentID uuid.UUID, outcome model.GatewayOutcome)
}

type Service struct {
	payments   repository.PaymentRepository
	notifier   Notifier
	logger     *logger.Logger
	metrics    *metrics.Metrics
	merchantID string
	secret     string
}

func NewService(payments repository.PaymentRepository, notifier Notifier, log *logger.Logger, m *metrics.Metrics, merchantID, secret string) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		payments:   payments,
		notifier:   notifier,
		logger:     log,
		metrics:    m,
		merchantID: merchantID,
		secret:     secret,
	}
}

// HandleWebhook verifies and applies one webhook delivery. A bad signature is
// discarded without touching any state; the transport layer still answers 200
// so the gateway does not retry forever.
func (s *Service) HandleWebhook(ctx context.Context, payload *WebhookPayload) (model.ApplyResult, error) {
	if !s.VerifySignature(payload) {
		s.countWebhook("invalid_signature")
		s.logger.ZL.Warn().
			Str("gateway_ref", payload.RefPayco).
			Str("appointment_id", payload.Extra1).
			Msg("webhook signature mismatch, discarding")
		return "", apperrors.Security("invalid webhook signature")
	}

	appointmentID, err := uuid.Parse(payload.Extra1)
	if err != nil {
		s.countWebhook("invalid_reference")
		s.logger.ZL.Warn().
			Str("extra1", payload.Extra1).
			Msg("webhook carries no usable appointment reference")
		return "", apperrors.BadRequest("invalid appointment reference")
	}

	s.countWebhook("accepted")

	rec := &model.OutcomeRecord{
		AppointmentID: appointmentID,
		Outcome:       model.OutcomeFromCode(payload.CodResponse),
		GatewayRef:    payload.RefPayco,
		GatewayTxID:   payload.TransactionID,
		ResponseCode:  payload.CodResponse,
		Message:       payload.ResponseReason,
	}
	return s.Apply(ctx, rec)
}

// Apply runs one outcome through the reconciler. Non-terminal outcomes are
// ignored here; terminal ones are finalized at most once by the repository
// transaction, and redeliveries come back as AlreadyFinalized.
func (s *Service) Apply(ctx context.Context, rec *model.OutcomeRecord) (model.ApplyResult, error) {
	if !rec.Outcome.Terminal() {
		if rec.Outcome == model.OutcomeUnknown {
			s.logger.ZL.Warn().
				Str("appointment_id", rec.AppointmentID.String()).
				Str("response_code", rec.ResponseCode).
				Msg("unrecognized gateway response code, leaving session pending")
		}
		s.countOutcome(rec.Outcome, model.ApplyResultIgnoredNonTerminal)
		return model.ApplyResultIgnoredNonTerminal, nil
	}

	start := time.Now()
	result, err := s.payments.ApplyOutcome(ctx, rec)
	if s.metrics != nil {
		s.metrics.ReconcileLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.countOutcome(rec.Outcome, "error")
		return "", err
	}
	s.countOutcome(rec.Outcome, result)

	switch result {
	case model.ApplyResultApplied:
		s.logger.ZL.Info().
			Str("appointment_id", rec.AppointmentID.String()).
			Str("outcome", string(rec.Outcome)).
			Str("gateway_ref", rec.GatewayRef).
			Msg("payment outcome applied")
		if s.notifier != nil {
			s.notifier.PaymentOutcome(ctx, rec.AppointmentID, rec.Outcome)
		}
	case model.ApplyResultAlreadyFinalized:
		s.logger.ZL.Debug().
			Str("appointment_id", rec.AppointmentID.String()).
			Str("outcome", string(rec.Outcome)).
			Msg("payment already finalized, ignoring redelivery")
	case model.ApplyResultNotFound:
		s.logger.ZL.Warn().
			Str("appointment_id", rec.AppointmentID.String()).
			Msg("no payment session for outcome")
	}
	return result, nil
}

// Status reports the session for one appointment.
func (s *Service) Status(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentSession, error) {
	return s.payments.GetSessionByAppointment(ctx, appointmentID)
}

func (s *Service) countWebhook(result string) {
	if s.metrics != nil {
		s.metrics.WebhooksReceived.WithLabelValues(result).Inc()
	}
}

func (s *Service) countOutcome(outcome model.GatewayOutcome, result model.ApplyResult) {
	if s.metrics != nil {
		s.metrics.OutcomesApplied.WithLabelValues(string(outcome), string(result)).Inc()
	}
}
