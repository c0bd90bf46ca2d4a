package model

import "github.com/google/uuid"

// Directory rows are maintained by the surrounding admin system and are
// read-only here.

type Patient struct {
	ID           uuid.UUID `json:"id" db:"id"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	DocumentType string    `json:"document_type" db:"document_type"`
	DocumentID   string    `json:"document_id" db:"document_id"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type Doctor struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

type Specialty struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	DurationMins int       `json:"duration_mins" db:"duration_mins"`
	CostCents    int64     `json:"cost_cents" db:"cost_cents"`
}
