package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/model"
)

func (r *availabilityRepository) ListBlocks(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]model.AvailabilityBlock, error) {
	query := `
		SELECT id, doctor_id, date, start_minute, end_minute
		FROM availability_blocks
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_minute
	`
	blocks := make([]model.AvailabilityBlock, 0)
	if err := r.db.SelectContext(ctx, &blocks, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to list availability blocks: %w", err)
	}
	return blocks, nil
}
