// Package booking owns the appointment lifecycle up to the payment hand-off:
// availability, validation, creation, cancellation and rescheduling.
package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/gateway"
	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/repository"
	"github.com/clinova/booking-api/internal/schedule"
	apperrors "github.com/clinova/booking-api/pkg/errors"
	"github.com/clinova/booking-api/pkg/logger"
)

// GatewayClient is the slice of the gateway the booking flow needs.
type GatewayClient interface {
	CreateSession(ctx context.Context, appointment *model.Appointment, patient *model.Patient) (*gateway.SessionHandle, error)
}

// Notifier sends best-effort booking notifications.
type Notifier interface {
	BookingCreated(ctx context.Context, appointment *model.Appointment, checkoutURL string)
}

type Config struct {
	QuantumMins     int
	MinDurationMins int
	MaxDurationMins int
	Currency        string
}

type Service struct {
	cfg          Config
	appointments repository.AppointmentRepository
	availability repository.AvailabilityRepository
	payments     repository.PaymentRepository
	directory    *cachedDirectory
	gateway      GatewayClient
	notifier     Notifier
	logger       *logger.Logger
}

func NewService(cfg Config, appointments repository.AppointmentRepository, availability repository.AvailabilityRepository, payments repository.PaymentRepository, directory repository.DirectoryRepository, gw GatewayClient, notifier Notifier, log *logger.Logger) *Service {
	if cfg.QuantumMins <= 0 {
		cfg.QuantumMins = schedule.DefaultQuantumMins
	}
	if cfg.MinDurationMins <= 0 {
		cfg.MinDurationMins = 15
	}
	if cfg.MaxDurationMins <= 0 {
		cfg.MaxDurationMins = 240
	}
	if cfg.Currency == "" {
		cfg.Currency = "COP"
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &Service{
		cfg:          cfg,
		appointments: appointments,
		availability: availability,
		payments:     payments,
		directory:    newCachedDirectory(directory),
		gateway:      gw,
		notifier:     notifier,
		logger:       log,
	}
}

// BookingResult is what a successful booking hands back to the caller.
type BookingResult struct {
	Appointment *model.Appointment `json:"appointment"`
	CheckoutURL string             `json:"checkout_url,omitempty"`
	SessionID   string             `json:"session_id,omitempty"`
}

// GetAvailability returns the doctor's slots for one day with occupied quanta
// marked.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.Slot, error) {
	blocks, err := s.availability.ListBlocks(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	busy, err := s.busyIntervals(ctx, doctorID, date, nil)
	if err != nil {
		return nil, err
	}
	return schedule.ComputeSlots(blocks, busy, s.cfg.QuantumMins), nil
}

// Validate checks one requested slot against current availability and current
// appointments. It reads fresh state on every call; a pass here is advisory
// and the create transaction re-checks before committing.
func (s *Service) Validate(ctx context.Context, doctorID uuid.UUID, date time.Time, startMinute, durationMins int) error {
	return s.validateSlot(ctx, doctorID, date, startMinute, durationMins, nil)
}

func (s *Service) validateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, startMinute, durationMins int, excludeID *uuid.UUID) error {
	if durationMins < s.cfg.MinDurationMins || durationMins > s.cfg.MaxDurationMins {
		return apperrors.BadRequest("appointment duration out of range")
	}
	if startMinute < 0 || startMinute+durationMins > 24*60 {
		return apperrors.BadRequest("appointment does not fit in the day")
	}

	blocks, err := s.availability.ListBlocks(ctx, doctorID, date)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return apperrors.BadRequest("doctor has no availability configured for this day")
	}

	requested := model.Interval{Start: startMinute, End: startMinute + durationMins}
	if !schedule.FitsWithinBlocks(blocks, requested) {
		return apperrors.BadRequest("requested time is outside the doctor's availability")
	}

	busy, err := s.busyIntervals(ctx, doctorID, date, excludeID)
	if err != nil {
		return err
	}
	if schedule.HasConflict(busy, requested) {
		return apperrors.Conflict("slot is already taken")
	}
	return nil
}

// ValidateAndBook creates the appointment. The gateway session is created
// first so a gateway failure leaves no state behind; the appointment and its
// session then commit in one transaction.
func (s *Service) ValidateAndBook(ctx context.Context, req *model.CreateAppointmentRequest) (*BookingResult, error) {
	patient, err := s.directory.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}
	specialty, err := s.directory.GetSpecialty(ctx, req.SpecialtyID)
	if err != nil {
		return nil, err
	}

	durationMins := req.DurationMins
	if durationMins == 0 {
		durationMins = specialty.DurationMins
	}
	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}

	if err := s.Validate(ctx, req.DoctorID, req.Date, req.StartMinute, durationMins); err != nil {
		return nil, err
	}

	appointment := &model.Appointment{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		SpecialtyID:  req.SpecialtyID,
		Date:         req.Date,
		StartMinute:  req.StartMinute,
		DurationMins: durationMins,
		CostCents:    specialty.CostCents,
		Reason:       req.Reason,
		Priority:     priority,
		Status:       model.AppointmentStatusPendingPayment,
	}
	appointment.ID = uuid.New()

	if req.Prepaid {
		// Staff-entered prepaid booking: no checkout, scheduled and billed
		// immediately.
		appointment.Status = model.AppointmentStatusScheduled
		if err := s.appointments.CreateWithSession(ctx, appointment, nil); err != nil {
			return nil, err
		}
		if _, err := s.payments.CreateInvoiceForAppointment(ctx, appointment, model.PaymentMethodCash, "prepaid at front desk"); err != nil {
			s.logger.ZL.Error().Err(err).
				Str("appointment_id", appointment.ID.String()).
				Msg("failed to invoice prepaid booking")
			return nil, err
		}
		return &BookingResult{Appointment: appointment}, nil
	}

	handle, err := s.gateway.CreateSession(ctx, appointment, patient)
	if err != nil {
		// Nothing was persisted; the orphaned gateway session expires on
		// its own.
		return nil, apperrors.Gateway("failed to create payment session", err)
	}

	session := &model.PaymentSession{
		GatewaySessionID: handle.SessionID,
		CheckoutURL:      handle.CheckoutURL,
		AmountCents:      appointment.CostCents,
		Currency:         s.cfg.Currency,
	}
	if err := s.appointments.CreateWithSession(ctx, appointment, session); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, appointment, handle.CheckoutURL)
	}

	return &BookingResult{
		Appointment: appointment,
		CheckoutURL: handle.CheckoutURL,
		SessionID:   handle.SessionID,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// Cancel cancels a booking that has not happened yet.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return s.appointments.Cancel(ctx, id, reason)
}

// Reschedule moves an active booking to a new validated slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, startMinute int) error {
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		return err
	}
	if appointment.Status != model.AppointmentStatusPendingPayment && appointment.Status != model.AppointmentStatusScheduled {
		return apperrors.Conflict("appointment can no longer be rescheduled")
	}

	if err := s.validateSlot(ctx, appointment.DoctorID, date, startMinute, appointment.DurationMins, &id); err != nil {
		return err
	}
	return s.appointments.Reschedule(ctx, id, date, startMinute)
}

// GetPaymentStatus reports the appointment state together with its payment
// session, when one exists.
func (s *Service) GetPaymentStatus(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentStatusResponse, error) {
	appointment, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	resp := &model.PaymentStatusResponse{
		AppointmentID:     appointment.ID,
		AppointmentStatus: appointment.Status,
	}

	session, err := s.payments.GetSessionByAppointment(ctx, appointmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return resp, nil
		}
		return nil, err
	}
	resp.SessionStatus = session.Status
	if session.Status == model.PaymentSessionStatusPending {
		resp.CheckoutURL = session.CheckoutURL
	}
	return resp, nil
}

func (s *Service) busyIntervals(ctx context.Context, doctorID uuid.UUID, date time.Time, excludeID *uuid.UUID) ([]model.Interval, error) {
	appointments, err := s.appointments.ListForDoctorDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	busy := make([]model.Interval, 0, len(appointments))
	for _, a := range appointments {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		busy = append(busy, a.Interval())
	}
	return busy, nil
}
