package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/repository"
)

// cachedDirectory memoizes directory lookups. Patients, doctors and
// specialties change rarely and every booking reads all three.
type cachedDirectory struct {
	repo  repository.DirectoryRepository
	cache *gocache.Cache
}

func newCachedDirectory(repo repository.DirectoryRepository) *cachedDirectory {
	return &cachedDirectory{
		repo:  repo,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (d *cachedDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	key := "patient:" + id.String()
	if v, ok := d.cache.Get(key); ok {
		return v.(*model.Patient), nil
	}
	patient, err := d.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key, patient, gocache.DefaultExpiration)
	return patient, nil
}

func (d *cachedDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	key := "doctor:" + id.String()
	if v, ok := d.cache.Get(key); ok {
		return v.(*model.Doctor), nil
	}
	doctor, err := d.repo.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key, doctor, gocache.DefaultExpiration)
	return doctor, nil
}

func (d *cachedDirectory) GetSpecialty(ctx context.Context, id uuid.UUID) (*model.Specialty, error) {
	key := "specialty:" + id.String()
	if v, ok := d.cache.Get(key); ok {
		return v.(*model.Specialty), nil
	}
	specialty, err := d.repo.GetSpecialty(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key, specialty, gocache.DefaultExpiration)
	return specialty, nil
}
