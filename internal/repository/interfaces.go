package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/model"
)

type (
	AppointmentRepository interface {
		// CreateWithSession inserts the appointment and, when session is
		// non-nil, its payment session in one transaction. The slot conflict
		// check runs inside the same transaction.
		CreateWithSession(ctx context.Context, appointment *model.Appointment, session *model.PaymentSession) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error)
		Cancel(ctx context.Context, id uuid.UUID, reason string) error
		Reschedule(ctx context.Context, id uuid.UUID, date time.Time, startMinute int) error
		// ExpirePending cancels pending_payment appointments created before
		// the cutoff and returns how many rows changed.
		ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
	}

	PaymentRepository interface {
		GetSessionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentSession, error)
		ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentSession, error)
		// ApplyOutcome finalizes a payment session and its appointment in one
		// transaction: session to the terminal status, appointment to
		// scheduled plus invoice and payment rows on approval, cancelled
		// otherwise. Returns AlreadyFinalized when either row left pending
		// before this call.
		ApplyOutcome(ctx context.Context, rec *model.OutcomeRecord) (model.ApplyResult, error)
		GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error)
		// CreateInvoiceForAppointment bills a prepaid booking outside the
		// gateway flow.
		CreateInvoiceForAppointment(ctx context.Context, appointment *model.Appointment, method model.PaymentMethod, reference string) (*model.Invoice, error)
	}

	AvailabilityRepository interface {
		ListBlocks(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.AvailabilityBlock, error)
	}

	DirectoryRepository interface {
		GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetSpecialty(ctx context.Context, id uuid.UUID) (*model.Specialty, error)
	}
)
