package repository

import (
	"context"
	"time"

	"bloodbank/internal/domain"
)

// InventoryRepository aggregate reads over the three component tables.
// Only active rows with expiration_date > today ever contribute.
type InventoryRepository interface {
	// FetchActiveBuckets groups one hospital's stock by (blood_type, rh), ordered by
	// blood_type then rh. Plasma rh is always "".
	FetchActiveBuckets(ctx context.Context, hospitalID int64, ct domain.ComponentType, today time.Time) ([]domain.InventoryBucket, error)

	// FetchOtherHospitalBuckets returns every other hospital's total for one
	// (component, blood type, rh), filtered by the strict bounds in q.
	FetchOtherHospitalBuckets(ctx context.Context, q OtherBucketsQuery) ([]domain.HospitalBucket, error)

	// CountExpiring per hospital, bags with today < expiration_date <= until.
	CountExpiring(ctx context.Context, ct domain.ComponentType, today, until time.Time) ([]ExpiringStock, error)
}

// OtherBucketsQuery filter for FetchOtherHospitalBuckets.
// With MinTotalExclusive set rows are ordered by total descending; with only
// MaxTotalExclusive set they are ordered ascending (most needy first).
type OtherBucketsQuery struct {
	ExcludeHospitalID int64
	ComponentType     domain.ComponentType
	BloodType         domain.BloodType
	Rh                domain.Rh
	Today             time.Time
	MinTotalExclusive *int
	MaxTotalExclusive *int
}

// ExpiringStock bags about to expire for one hospital and component.
type ExpiringStock struct {
	HospitalID    int64                `json:"hospital_id"`
	HospitalName  string               `json:"hospital_name"`
	ComponentType domain.ComponentType `json:"component_type"`
	Count         int                  `json:"count"`
	TotalAmountMl int                  `json:"total_amount_ml"`
}

// IntPtr helper for the optional query bounds.
func IntPtr(v int) *int { return &v }
