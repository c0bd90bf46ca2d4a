package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPendingPayment AppointmentStatus = "pending_payment"
	AppointmentStatusScheduled      AppointmentStatus = "scheduled"
	AppointmentStatusCompleted      AppointmentStatus = "completed"
	AppointmentStatusNoShow         AppointmentStatus = "no_show"
	AppointmentStatusCancelled      AppointmentStatus = "cancelled"
)

// Terminal reports whether the appointment can no longer change state.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusNoShow, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether a cancellation request is accepted in this state.
func (s AppointmentStatus) Cancellable() bool {
	return s == AppointmentStatusPendingPayment || s == AppointmentStatusScheduled
}

// Appointment is a booked consultation. Date carries the day at midnight UTC;
// the time of day lives in StartMinute (minutes from midnight).
type Appointment struct {
	Base
	PatientID    uuid.UUID         `json:"patient_id" db:"patient_id"`
	DoctorID     uuid.UUID         `json:"doctor_id" db:"doctor_id"`
	SpecialtyID  uuid.UUID         `json:"specialty_id" db:"specialty_id"`
	Date         time.Time         `json:"date" db:"date"`
	StartMinute  int               `json:"start_minute" db:"start_minute"`
	DurationMins int               `json:"duration_mins" db:"duration_mins"`
	CostCents    int64             `json:"cost_cents" db:"cost_cents"`
	Reason       string            `json:"reason" db:"reason"`
	Priority     string            `json:"priority" db:"priority"`
	Status       AppointmentStatus `json:"status" db:"status"`
	CancelReason *string           `json:"cancel_reason,omitempty" db:"cancel_reason"`
}

// Interval returns the half-open occupied range [start, start+duration).
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartMinute, End: a.StartMinute + a.DurationMins}
}

// CreateAppointmentRequest is the booking payload. Duration and cost default
// from the specialty when zero.
type CreateAppointmentRequest struct {
	PatientID    uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID     uuid.UUID `json:"doctor_id" validate:"required"`
	SpecialtyID  uuid.UUID `json:"specialty_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	StartMinute  int       `json:"start_minute" validate:"gte=0,lt=1440"`
	DurationMins int       `json:"duration_mins" validate:"gte=0"`
	Reason       string    `json:"reason"`
	Priority     string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Prepaid      bool      `json:"prepaid"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RescheduleAppointmentRequest struct {
	Date        time.Time `json:"date" validate:"required"`
	StartMinute int       `json:"start_minute" validate:"gte=0,lt=1440"`
}
