package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentSessionStatus string

const (
	PaymentSessionStatusPending  PaymentSessionStatus = "pending"
	PaymentSessionStatusApproved PaymentSessionStatus = "approved"
	PaymentSessionStatusRejected PaymentSessionStatus = "rejected"
	PaymentSessionStatusFailed   PaymentSessionStatus = "failed"
)

// Terminal reports whether the session has reached a final state. Sessions
// move out of pending exactly once and are immutable afterwards.
func (s PaymentSessionStatus) Terminal() bool {
	return s != PaymentSessionStatusPending
}

// PaymentSession tracks one gateway checkout for one appointment. The
// appointment_id column carries a unique constraint so a booking can never
// hold two sessions.
type PaymentSession struct {
	ID               uuid.UUID            `json:"id" db:"id"`
	AppointmentID    uuid.UUID            `json:"appointment_id" db:"appointment_id"`
	GatewaySessionID string               `json:"gateway_session_id" db:"gateway_session_id"`
	CheckoutURL      string               `json:"checkout_url" db:"checkout_url"`
	AmountCents      int64                `json:"amount_cents" db:"amount_cents"`
	Currency         string               `json:"currency" db:"currency"`
	Status           PaymentSessionStatus `json:"status" db:"status"`
	GatewayRef       *string              `json:"gateway_ref,omitempty" db:"gateway_ref"`
	GatewayTxID      *string              `json:"gateway_tx_id,omitempty" db:"gateway_tx_id"`
	ResponseCode     *string              `json:"response_code,omitempty" db:"response_code"`
	ResponseMessage  *string              `json:"response_message,omitempty" db:"response_message"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at" db:"updated_at"`
}

// GatewayOutcome is the canonical interpretation of a gateway response,
// shared by the webhook and polling paths.
type GatewayOutcome string

const (
	OutcomeApproved GatewayOutcome = "approved"
	OutcomePending  GatewayOutcome = "pending"
	OutcomeRejected GatewayOutcome = "rejected"
	OutcomeFailed   GatewayOutcome = "failed"
	OutcomeUnknown  GatewayOutcome = "unknown"
)

// Terminal reports whether the outcome should finalize the payment session.
func (o GatewayOutcome) Terminal() bool {
	switch o {
	case OutcomeApproved, OutcomeRejected, OutcomeFailed:
		return true
	}
	return false
}

// SessionStatus converts a terminal outcome to its session status.
func (o GatewayOutcome) SessionStatus() PaymentSessionStatus {
	switch o {
	case OutcomeApproved:
		return PaymentSessionStatusApproved
	case OutcomeRejected:
		return PaymentSessionStatusRejected
	case OutcomeFailed:
		return PaymentSessionStatusFailed
	}
	return PaymentSessionStatusPending
}

var outcomeByCode = map[string]GatewayOutcome{
	"1": OutcomeApproved,
	"2": OutcomeRejected,
	"3": OutcomePending,
	"4": OutcomeFailed,
}

// OutcomeFromCode maps a gateway numeric response code to an outcome.
// Unrecognized codes map to OutcomeUnknown and must never finalize a session.
func OutcomeFromCode(code string) GatewayOutcome {
	if o, ok := outcomeByCode[code]; ok {
		return o
	}
	return OutcomeUnknown
}

// OutcomeRecord is a terminal outcome plus the gateway evidence that produced
// it, handed to the reconciler by either delivery channel.
type OutcomeRecord struct {
	AppointmentID uuid.UUID
	Outcome       GatewayOutcome
	GatewayRef    string
	GatewayTxID   string
	ResponseCode  string
	Message       string
}

// ApplyResult reports what the reconciler did with an outcome.
type ApplyResult string

const (
	ApplyResultApplied            ApplyResult = "applied"
	ApplyResultAlreadyFinalized   ApplyResult = "already_finalized"
	ApplyResultIgnoredNonTerminal ApplyResult = "ignored_non_terminal"
	ApplyResultNotFound           ApplyResult = "not_found"
)

// PaymentStatusResponse is the client-facing view of a booking's payment state.
type PaymentStatusResponse struct {
	AppointmentID     uuid.UUID            `json:"appointment_id"`
	AppointmentStatus AppointmentStatus    `json:"appointment_status"`
	SessionStatus     PaymentSessionStatus `json:"session_status,omitempty"`
	CheckoutURL       string               `json:"checkout_url,omitempty"`
}
