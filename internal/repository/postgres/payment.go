package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinova/booking-api/internal/model"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

func (r *paymentRepository) GetSessionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentSession, error) {
	query := `
		SELECT id, appointment_id, gateway_session_id, checkout_url,
			   amount_cents, currency, status,
			   gateway_ref, gateway_tx_id, response_code, response_message,
			   created_at, updated_at
		FROM payment_sessions
		WHERE appointment_id = $1
	`
	var session model.PaymentSession
	err := r.db.GetContext(ctx, &session, query, appointmentID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("payment session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment session: %w", err)
	}
	return &session, nil
}

func (r *paymentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.PaymentSession, error) {
	// Only sessions whose appointment is still awaiting payment are worth
	// polling. Sessions left pending after the expiry sweep or a user cancel
	// would otherwise accumulate at the head of every batch and crowd out
	// newer sessions forever.
	query := `
		SELECT ps.id, ps.appointment_id, ps.gateway_session_id, ps.checkout_url,
			   ps.amount_cents, ps.currency, ps.status,
			   ps.gateway_ref, ps.gateway_tx_id, ps.response_code, ps.response_message,
			   ps.created_at, ps.updated_at
		FROM payment_sessions ps
		JOIN appointments a ON a.id = ps.appointment_id
		WHERE ps.status = 'pending'
		  AND a.status = 'pending_payment'
		  AND ps.created_at < $1
		ORDER BY ps.created_at
		LIMIT $2
	`
	sessions := make([]*model.PaymentSession, 0)
	if err := r.db.SelectContext(ctx, &sessions, query, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending sessions: %w", err)
	}
	return sessions, nil
}

func (r *paymentRepository) ApplyOutcome(ctx context.Context, rec *model.OutcomeRecord) (model.ApplyResult, error) {
	if !rec.Outcome.Terminal() {
		return model.ApplyResultIgnoredNonTerminal, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the session first, the appointment second. Both webhook and
	// polling deliveries take the same locks in the same order.
	var session model.PaymentSession
	err = tx.GetContext(ctx, &session, `
		SELECT id, appointment_id, amount_cents, currency, status
		FROM payment_sessions
		WHERE appointment_id = $1
		FOR UPDATE
	`, rec.AppointmentID)
	if err == sql.ErrNoRows {
		return model.ApplyResultNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock payment session: %w", err)
	}

	var appointment model.Appointment
	err = tx.GetContext(ctx, &appointment, `
		SELECT id, patient_id, doctor_id, specialty_id, cost_cents, reason, status
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, rec.AppointmentID)
	if err == sql.ErrNoRows {
		return model.ApplyResultNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock appointment: %w", err)
	}

	if session.Status.Terminal() || appointment.Status != model.AppointmentStatusPendingPayment {
		return model.ApplyResultAlreadyFinalized, nil
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = $2, gateway_ref = $3, gateway_tx_id = $4,
			response_code = $5, response_message = $6, updated_at = $7
		WHERE id = $1 AND status = 'pending'
	`, session.ID, rec.Outcome.SessionStatus(), rec.GatewayRef, rec.GatewayTxID, rec.ResponseCode, rec.Message, now)
	if err != nil {
		return "", fmt.Errorf("failed to finalize payment session: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return model.ApplyResultAlreadyFinalized, nil
	}

	if rec.Outcome == model.OutcomeApproved {
		_, err = tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = 'scheduled', updated_at = $2
			WHERE id = $1 AND status = 'pending_payment'
		`, appointment.ID, now)
		if err != nil {
			return "", fmt.Errorf("failed to schedule appointment: %w", err)
		}

		reference := fmt.Sprintf("REF:%s TX:%s", rec.GatewayRef, rec.GatewayTxID)
		if _, err := createInvoiceTx(ctx, tx, &appointment, session.AmountCents, model.PaymentMethodGateway, reference, now); err != nil {
			return "", err
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = 'cancelled', cancel_reason = $2, updated_at = $3
			WHERE id = $1 AND status = 'pending_payment'
		`, appointment.ID, fmt.Sprintf("payment %s", rec.Outcome), now)
		if err != nil {
			return "", fmt.Errorf("failed to cancel appointment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit outcome: %w", err)
	}
	return model.ApplyResultApplied, nil
}

func (r *paymentRepository) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	query := `
		SELECT i.id, i.number, i.patient_id, i.status,
			   i.subtotal_cents, i.total_cents, i.balance_cents,
			   i.issued_at, i.created_at
		FROM invoices i
		JOIN invoice_items it ON it.invoice_id = i.id
		WHERE it.appointment_id = $1
	`
	var invoice model.Invoice
	err := r.db.GetContext(ctx, &invoice, query, appointmentID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("invoice not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

func (r *paymentRepository) CreateInvoiceForAppointment(ctx context.Context, appointment *model.Appointment, method model.PaymentMethod, reference string) (*model.Invoice, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	invoice, err := createInvoiceTx(ctx, tx, appointment, appointment.CostCents, method, reference, time.Now())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}
	return invoice, nil
}

// createInvoiceTx inserts an invoice, its single appointment item and the
// matching payment row. Numbers are F-YYYY-NNNNN, sequential within the year;
// the unique index on invoices.number backs the in-transaction sequence.
func createInvoiceTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment, amountCents int64, method model.PaymentMethod, reference string, now time.Time) (*model.Invoice, error) {
	year := now.Year()
	prefix := fmt.Sprintf("F-%d-", year)

	var seq int
	err := tx.GetContext(ctx, &seq, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $2) AS INTEGER)), 0) + 1
		FROM invoices
		WHERE number LIKE $1
	`, prefix+"%", len(prefix)+1)
	if err != nil {
		return nil, fmt.Errorf("failed to compute invoice number: %w", err)
	}

	invoice := &model.Invoice{
		ID:            uuid.New(),
		Number:        fmt.Sprintf("%s%05d", prefix, seq),
		PatientID:     appointment.PatientID,
		Status:        model.InvoiceStatusPaid,
		SubtotalCents: amountCents,
		TotalCents:    amountCents,
		BalanceCents:  0,
		IssuedAt:      now,
		CreatedAt:     now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, number, patient_id, status,
			subtotal_cents, total_cents, balance_cents,
			issued_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		invoice.ID,
		invoice.Number,
		invoice.PatientID,
		invoice.Status,
		invoice.SubtotalCents,
		invoice.TotalCents,
		invoice.BalanceCents,
		invoice.IssuedAt,
		invoice.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_items (
			id, invoice_id, appointment_id, item_type,
			description, quantity, unit_price_cents, total_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.New(),
		invoice.ID,
		appointment.ID,
		"consultation",
		appointment.Reason,
		1,
		amountCents,
		amountCents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice item: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (
			id, invoice_id, amount_cents, method, reference, notes, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.New(),
		invoice.ID,
		amountCents,
		method,
		reference,
		"",
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}

	return invoice, nil
}
