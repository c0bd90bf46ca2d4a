package model

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPaid InvoiceStatus = "paid"
	InvoiceStatusOpen InvoiceStatus = "open"
)

// Invoice is created exactly once per approved appointment. Numbers follow
// F-YYYY-NNNNN, sequential within the year.
type Invoice struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Number        string        `json:"number" db:"number"`
	PatientID     uuid.UUID     `json:"patient_id" db:"patient_id"`
	Status        InvoiceStatus `json:"status" db:"status"`
	SubtotalCents int64         `json:"subtotal_cents" db:"subtotal_cents"`
	TotalCents    int64         `json:"total_cents" db:"total_cents"`
	BalanceCents  int64         `json:"balance_cents" db:"balance_cents"`
	IssuedAt      time.Time     `json:"issued_at" db:"issued_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

type InvoiceItem struct {
	ID             uuid.UUID `json:"id" db:"id"`
	InvoiceID      uuid.UUID `json:"invoice_id" db:"invoice_id"`
	AppointmentID  uuid.UUID `json:"appointment_id" db:"appointment_id"`
	ItemType       string    `json:"item_type" db:"item_type"`
	Description    string    `json:"description" db:"description"`
	Quantity       int       `json:"quantity" db:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents" db:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents" db:"total_cents"`
}

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "gateway"
	PaymentMethodCash    PaymentMethod = "cash"
)

// Payment records money received against an invoice.
type Payment struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	InvoiceID   uuid.UUID     `json:"invoice_id" db:"invoice_id"`
	AmountCents int64         `json:"amount_cents" db:"amount_cents"`
	Method      PaymentMethod `json:"method" db:"method"`
	Reference   string        `json:"reference" db:"reference"`
	Notes       string        `json:"notes" db:"notes"`
	PaidAt      time.Time     `json:"paid_at" db:"paid_at"`
}
