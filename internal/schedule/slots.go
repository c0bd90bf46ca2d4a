// Package schedule derives bookable slots from availability blocks and the
// appointments already occupying them. Everything here is pure computation.
package schedule

import "github.com/clinova/booking-api/internal/model"

// DefaultQuantumMins is the slot granularity used when no override is configured.
const DefaultQuantumMins = 30

// ComputeSlots cuts each availability block into quanta and marks a quantum
// occupied when it intersects any busy interval. A partial overlap occupies
// the whole quantum. Empty blocks yield an empty, non-nil slice.
func ComputeSlots(blocks []model.AvailabilityBlock, busy []model.Interval, quantumMins int) []model.Slot {
	if quantumMins <= 0 {
		quantumMins = DefaultQuantumMins
	}

	slots := make([]model.Slot, 0)
	for _, block := range blocks {
		for start := block.StartMinute; start+quantumMins <= block.EndMinute; start += quantumMins {
			slot := model.Interval{Start: start, End: start + quantumMins}
			free := true
			for _, b := range busy {
				if slot.Overlaps(b) {
					free = false
					break
				}
			}
			slots = append(slots, model.Slot{
				StartMinute: slot.Start,
				EndMinute:   slot.End,
				Free:        free,
			})
		}
	}
	return slots
}

// QuantaFor returns how many quanta an appointment of the given duration
// consumes, rounding up.
func QuantaFor(durationMins, quantumMins int) int {
	if quantumMins <= 0 {
		quantumMins = DefaultQuantumMins
	}
	if durationMins <= 0 {
		return 0
	}
	return (durationMins + quantumMins - 1) / quantumMins
}

// FitsWithinBlocks reports whether the requested interval lies entirely inside
// a single availability block.
func FitsWithinBlocks(blocks []model.AvailabilityBlock, req model.Interval) bool {
	for _, block := range blocks {
		if req.Start >= block.StartMinute && req.End <= block.EndMinute {
			return true
		}
	}
	return false
}

// HasConflict reports whether the requested interval overlaps any busy interval.
func HasConflict(busy []model.Interval, req model.Interval) bool {
	for _, b := range busy {
		if req.Overlaps(b) {
			return true
		}
	}
	return false
}
