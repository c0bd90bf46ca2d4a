package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinova/booking-api/internal/model"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

func (r *directoryRepository) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, document_type, document_id
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("patient not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *directoryRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, first_name, last_name, email
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *directoryRepository) GetSpecialty(ctx context.Context, id uuid.UUID) (*model.Specialty, error) {
	query := `
		SELECT id, name, duration_mins, cost_cents
		FROM specialties
		WHERE id = $1
	`
	var specialty model.Specialty
	err := r.db.GetContext(ctx, &specialty, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("specialty not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get specialty: %w", err)
	}
	return &specialty, nil
}
