package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/model"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

func (r *appointmentRepository) CreateWithSession(ctx context.Context, appointment *model.Appointment, session *model.PaymentSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Conflict re-check inside the transaction. The partial unique index on
	// (doctor_id, date, start_minute) is the second line of defense.
	var conflict bool
	err = tx.GetContext(ctx, &conflict, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND status != 'cancelled'
			  AND deleted_at IS NULL
			  AND start_minute < $4
			  AND start_minute + duration_mins > $3
		)
	`, appointment.DoctorID, appointment.Date, appointment.StartMinute, appointment.StartMinute+appointment.DurationMins)
	if err != nil {
		return fmt.Errorf("failed to check slot conflicts: %w", err)
	}
	if conflict {
		return apperrors.Conflict("slot is no longer available")
	}

	now := time.Now()
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, specialty_id,
			date, start_minute, duration_mins, cost_cents,
			reason, priority, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.SpecialtyID,
		appointment.Date,
		appointment.StartMinute,
		appointment.DurationMins,
		appointment.CostCents,
		appointment.Reason,
		appointment.Priority,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("slot is no longer available")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if session != nil {
		session.ID = uuid.New()
		session.AppointmentID = appointment.ID
		session.Status = model.PaymentSessionStatusPending
		session.CreatedAt = now
		session.UpdatedAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_sessions (
				id, appointment_id, gateway_session_id, checkout_url,
				amount_cents, currency, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			session.ID,
			session.AppointmentID,
			session.GatewaySessionID,
			session.CheckoutURL,
			session.AmountCents,
			session.Currency,
			session.Status,
			session.CreatedAt,
			session.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, specialty_id,
			   date, start_minute, duration_mins, cost_cents,
			   reason, priority, status, cancel_reason,
			   created_at, updated_at, deleted_at
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListForDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, specialty_id,
			   date, start_minute, duration_mins, cost_cents,
			   reason, priority, status, cancel_reason,
			   created_at, updated_at, deleted_at
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND status != 'cancelled'
		  AND deleted_at IS NULL
		ORDER BY start_minute
	`
	appointments := make([]*model.Appointment, 0)
	if err := r.db.SelectContext(ctx, &appointments, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancel_reason = $2, updated_at = $3
		WHERE id = $1
		  AND status IN ('pending_payment', 'scheduled')
		  AND deleted_at IS NULL
	`, id, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return apperrors.Conflict("appointment can no longer be cancelled")
	}
	return nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, startMinute int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var appointment model.Appointment
	err = tx.GetContext(ctx, &appointment, `
		SELECT id, doctor_id, duration_mins, status
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("appointment not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock appointment: %w", err)
	}
	if appointment.Status != model.AppointmentStatusPendingPayment && appointment.Status != model.AppointmentStatusScheduled {
		return apperrors.Conflict("appointment can no longer be rescheduled")
	}

	var conflict bool
	err = tx.GetContext(ctx, &conflict, `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND id != $5
			  AND status != 'cancelled'
			  AND deleted_at IS NULL
			  AND start_minute < $4
			  AND start_minute + duration_mins > $3
		)
	`, appointment.DoctorID, date, startMinute, startMinute+appointment.DurationMins, id)
	if err != nil {
		return fmt.Errorf("failed to check slot conflicts: %w", err)
	}
	if conflict {
		return apperrors.Conflict("slot is no longer available")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE appointments
		SET date = $2, start_minute = $3, updated_at = $4
		WHERE id = $1
	`, id, date, startMinute, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("slot is no longer available")
		}
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reschedule: %w", err)
	}
	return nil
}

func (r *appointmentRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancel_reason = 'payment window expired', updated_at = $2
		WHERE status = 'pending_payment'
		  AND created_at < $1
		  AND deleted_at IS NULL
	`, cutoff, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending appointments: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
