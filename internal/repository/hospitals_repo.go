package repository

import (
	"context"

	"bloodbank/internal/domain"
)

// HospitalsRepository hospitals and their admin accounts
type HospitalsRepository interface {
	ListHospitals(ctx context.Context) ([]domain.Hospital, error)
	// GetHospital returns an error wrapping sql.ErrNoRows when missing.
	GetHospital(ctx context.Context, hospitalID int64) (*domain.Hospital, error)
}

// AdminsRepository login lookups
type AdminsRepository interface {
	// GetAdminByUsername returns an error wrapping sql.ErrNoRows when missing.
	GetAdminByUsername(ctx context.Context, username string) (*domain.Admin, error)
}
