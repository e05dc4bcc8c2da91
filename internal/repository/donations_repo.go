package repository

import (
	"context"

	"bloodbank/internal/domain"
)

// DonationsRepository row-level access to donation bags.
// bag_id is unique only within a component table, so every call carries the type.
// Mutations are scoped by (bag_id, hospital_id) and return the affected row count.
type DonationsRepository interface {
	// ========== Read ==========
	// GetDonation returns the row or an error wrapping sql.ErrNoRows.
	GetDonation(ctx context.Context, ct domain.ComponentType, bagID int64) (*domain.DonationRecord, error)

	// FetchRecordOwner returns hospital_id of the bag (sql.ErrNoRows when missing).
	FetchRecordOwner(ctx context.Context, ct domain.ComponentType, bagID int64) (int64, error)

	// SearchDonations lists one hospital's bags (paged).
	SearchDonations(ctx context.Context, hospitalID int64, filter DonationsFilter, page, size int) ([]domain.DonationRecord, int, error)

	// ========== Write ==========
	CreateDonation(ctx context.Context, ct domain.ComponentType, hospitalID int64, f domain.DonationFields) (int64, error)
	UpdateDonation(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64, f domain.DonationFields) (int64, error)

	// MutateActiveFlag soft-delete (active=false) or restore (active=true).
	MutateActiveFlag(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64, active bool) (int64, error)

	// DeleteDonation hard delete; legacy administrative path only.
	DeleteDonation(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64) (int64, error)
}

// DonationsFilter search options
type DonationsFilter struct {
	ComponentType   domain.ComponentType // required
	BloodType       domain.BloodType     // optional
	Rh              domain.Rh            // optional, ignored for plasma
	Donor           string               // optional, case-insensitive substring
	IncludeInactive bool                 // include soft-deleted rows
	OnlyInactive    bool                 // only soft-deleted rows
}
