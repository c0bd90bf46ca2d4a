package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/booking-api/internal/model"
)

func block(start, end int) model.AvailabilityBlock {
	return model.AvailabilityBlock{StartMinute: start, EndMinute: end}
}

func TestComputeSlots_NoBlocks(t *testing.T) {
	slots := ComputeSlots(nil, nil, 30)
	require.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestComputeSlots_CutsBlockIntoQuanta(t *testing.T) {
	// 09:00-11:00 at 30 minutes -> four slots
	slots := ComputeSlots([]model.AvailabilityBlock{block(540, 660)}, nil, 30)

	require.Len(t, slots, 4)
	assert.Equal(t, 540, slots[0].StartMinute)
	assert.Equal(t, 570, slots[0].EndMinute)
	assert.Equal(t, 630, slots[3].StartMinute)
	for _, s := range slots {
		assert.True(t, s.Free)
	}
}

func TestComputeSlots_DropsTrailingPartialQuantum(t *testing.T) {
	// 09:00-09:50 only fits one full 30-minute slot
	slots := ComputeSlots([]model.AvailabilityBlock{block(540, 590)}, nil, 30)

	require.Len(t, slots, 1)
	assert.Equal(t, 540, slots[0].StartMinute)
}

func TestComputeSlots_PartialOverlapOccupiesWholeQuantum(t *testing.T) {
	// Appointment 09:15-09:45 straddles two quanta; both become occupied.
	busy := []model.Interval{{Start: 555, End: 585}}
	slots := ComputeSlots([]model.AvailabilityBlock{block(540, 660)}, busy, 30)

	require.Len(t, slots, 4)
	assert.False(t, slots[0].Free)
	assert.False(t, slots[1].Free)
	assert.True(t, slots[2].Free)
	assert.True(t, slots[3].Free)
}

func TestComputeSlots_BackToBackIsNotAConflict(t *testing.T) {
	// Appointment ends exactly where the quantum starts.
	busy := []model.Interval{{Start: 510, End: 540}}
	slots := ComputeSlots([]model.AvailabilityBlock{block(540, 600)}, busy, 30)

	require.Len(t, slots, 2)
	assert.True(t, slots[0].Free)
	assert.True(t, slots[1].Free)
}

func TestComputeSlots_MultipleBlocks(t *testing.T) {
	blocks := []model.AvailabilityBlock{block(540, 600), block(840, 900)}
	slots := ComputeSlots(blocks, nil, 30)

	require.Len(t, slots, 4)
	assert.Equal(t, 540, slots[0].StartMinute)
	assert.Equal(t, 840, slots[2].StartMinute)
}

func TestQuantaFor_RoundsUp(t *testing.T) {
	assert.Equal(t, 1, QuantaFor(30, 30))
	assert.Equal(t, 2, QuantaFor(31, 30))
	assert.Equal(t, 2, QuantaFor(45, 30))
	assert.Equal(t, 2, QuantaFor(60, 30))
	assert.Equal(t, 0, QuantaFor(0, 30))
}

func TestFitsWithinBlocks(t *testing.T) {
	blocks := []model.AvailabilityBlock{block(540, 660)}

	assert.True(t, FitsWithinBlocks(blocks, model.Interval{Start: 540, End: 600}))
	assert.True(t, FitsWithinBlocks(blocks, model.Interval{Start: 600, End: 660}))
	assert.False(t, FitsWithinBlocks(blocks, model.Interval{Start: 630, End: 690}))
	assert.False(t, FitsWithinBlocks(nil, model.Interval{Start: 540, End: 600}))
}

func TestHasConflict(t *testing.T) {
	busy := []model.Interval{{Start: 540, End: 570}}

	assert.True(t, HasConflict(busy, model.Interval{Start: 560, End: 590}))
	assert.False(t, HasConflict(busy, model.Interval{Start: 570, End: 600}))
	assert.False(t, HasConflict(nil, model.Interval{Start: 540, End: 570}))
}
