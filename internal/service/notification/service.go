// Package notification delivers best-effort messages after booking and
// payment events. Every failure here is logged and swallowed; notifications
// never affect the state that triggered them.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/email"
	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/repository"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/messaging"
)

const eventChannel = "booking-events"

type Service struct {
	appointments repository.AppointmentRepository
	directory    repository.DirectoryRepository
	email        *email.Service
	broker       messaging.Broker
	logger       *logger.Logger
}

func NewService(appointments repository.AppointmentRepository, directory repository.DirectoryRepository, mail *email.Service, broker messaging.Broker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		appointments: appointments,
		directory:    directory,
		email:        mail,
		broker:       broker,
		logger:       log,
	}
}

// PaymentOutcome tells the patient what happened to their payment and
// publishes the event for downstream consumers.
func (s *Service) PaymentOutcome(ctx context.Context, appointmentID uuid.UUID, outcome model.GatewayOutcome) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		s.logger.ZL.Warn().Err(err).
			Str("appointment_id", appointmentID.String()).
			Msg("cannot load appointment for notification")
		return
	}
	patient, err := s.directory.GetPatient(ctx, appointment.PatientID)
	if err != nil {
		s.logger.ZL.Warn().Err(err).
			Str("appointment_id", appointmentID.String()).
			Msg("cannot load patient for notification")
		return
	}

	var subject, body string
	switch outcome {
	case model.OutcomeApproved:
		subject = "Your appointment is confirmed"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Your payment was received and your appointment on %s at %s is confirmed.</p>",
			patient.FirstName,
			appointment.Date.Format("2006-01-02"),
			clockTime(appointment.StartMinute),
		)
	default:
		subject = "Your payment could not be processed"
		body = fmt.Sprintf(
			"<p>Hi %s,</p><p>Your payment was not processed and the appointment on %s was cancelled. You can book a new slot at any time.</p>",
			patient.FirstName,
			appointment.Date.Format("2006-01-02"),
		)
	}

	if s.email != nil {
		if err := s.email.Send(patient.Email, subject, body); err != nil {
			s.logger.ZL.Warn().Err(err).
				Str("appointment_id", appointmentID.String()).
				Msg("failed to send payment outcome email")
		}
	}

	s.publish(ctx, "payment."+string(outcome), appointment)
}

// BookingCreated sends the checkout link for a booking awaiting payment.
func (s *Service) BookingCreated(ctx context.Context, appointment *model.Appointment, checkoutURL string) {
	patient, err := s.directory.GetPatient(ctx, appointment.PatientID)
	if err != nil {
		s.logger.ZL.Warn().Err(err).
			Str("appointment_id", appointment.ID.String()).
			Msg("cannot load patient for booking notification")
		return
	}

	if s.email != nil && checkoutURL != "" {
		body := fmt.Sprintf(
			"<p>Hi %s,</p><p>Your appointment on %s at %s is reserved. Complete the payment to confirm it:</p><p><a href=%q>Pay now</a></p>",
			patient.FirstName,
			appointment.Date.Format("2006-01-02"),
			clockTime(appointment.StartMinute),
			checkoutURL,
		)
		if err := s.email.Send(patient.Email, "Complete your appointment payment", body); err != nil {
			s.logger.ZL.Warn().Err(err).
				Str("appointment_id", appointment.ID.String()).
				Msg("failed to send booking email")
		}
	}

	s.publish(ctx, "appointment.created", appointment)
}

func (s *Service) publish(ctx context.Context, eventType string, appointment *model.Appointment) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{
		Type: eventType,
		Payload: map[string]string{
			"appointment_id": appointment.ID.String(),
			"patient_id":     appointment.PatientID.String(),
			"status":         string(appointment.Status),
		},
	}
	if err := s.broker.Publish(ctx, eventChannel, msg); err != nil {
		s.logger.ZL.Warn().Err(err).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}

func clockTime(startMinute int) string {
	return fmt.Sprintf("%02d:%02d", startMinute/60, startMinute%60)
}
