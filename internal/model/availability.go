package model

import (
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open range of minutes from midnight, [Start, End).
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// AvailabilityBlock is a doctor's published working window for one day.
// Blocks are maintained elsewhere; this service only reads them.
type AvailabilityBlock struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DoctorID    uuid.UUID `json:"doctor_id" db:"doctor_id"`
	Date        time.Time `json:"date" db:"date"`
	StartMinute int       `json:"start_minute" db:"start_minute"`
	EndMinute   int       `json:"end_minute" db:"end_minute"`
}

func (b *AvailabilityBlock) Interval() Interval {
	return Interval{Start: b.StartMinute, End: b.EndMinute}
}

// Slot is one bookable quantum derived from availability blocks. Slots are
// computed per request and never persisted.
type Slot struct {
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
	Free        bool `json:"free"`
}
