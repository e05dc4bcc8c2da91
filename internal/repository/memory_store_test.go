package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"bloodbank/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore() *MemoryStore {
	s := NewMemoryStore()
	s.UpsertHospital(domain.Hospital{HospitalID: 1, HospitalName: "Central"})
	s.UpsertHospital(domain.Hospital{HospitalID: 2, HospitalName: "North"})
	s.UpsertHospital(domain.Hospital{HospitalID: 3, HospitalName: "East"})
	return s
}

func putBags(s *MemoryStore, hospitalID int64, ct domain.ComponentType, bt domain.BloodType, rh domain.Rh, amounts ...int) {
	for _, a := range amounts {
		s.PutDonation(domain.DonationRecord{
			ComponentType:  ct,
			DonorName:      "donor",
			BloodType:      bt,
			Rh:             rh,
			AmountMl:       a,
			ExpirationDate: testToday.AddDate(0, 0, 10),
			HospitalID:     hospitalID,
			Active:         true,
		})
	}
}

func TestMemoryStore_FetchActiveBucketsSkipsExpiredAndInactive(t *testing.T) {
	s := seededStore()
	putBags(s, 1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 400, 400)
	s.PutDonation(domain.DonationRecord{
		ComponentType: domain.ComponentRedBlood, BloodType: domain.BloodTypeA, Rh: domain.RhPositive,
		AmountMl: 300, ExpirationDate: testToday, HospitalID: 1, Active: true,
	})
	s.PutDonation(domain.DonationRecord{
		ComponentType: domain.ComponentRedBlood, BloodType: domain.BloodTypeA, Rh: domain.RhPositive,
		AmountMl: 300, ExpirationDate: testToday.AddDate(0, 0, 3), HospitalID: 1, Active: false,
	})

	buckets, err := s.FetchActiveBuckets(context.Background(), 1, domain.ComponentRedBlood, testToday)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 800, buckets[0].TotalAmountMl)
}

func TestMemoryStore_FetchOtherHospitalBucketsStrictBounds(t *testing.T) {
	s := seededStore()
	putBags(s, 1, domain.ComponentPlatelets, domain.BloodTypeB, domain.RhNegative, 100)
	putBags(s, 2, domain.ComponentPlatelets, domain.BloodTypeB, domain.RhNegative, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500) // 6000
	putBags(s, 3, domain.ComponentPlatelets, domain.BloodTypeB, domain.RhNegative, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500)           // 5000
	putBags(s, 3, domain.ComponentPlatelets, domain.BloodTypeB, domain.RhPositive, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 500)

	out, err := s.FetchOtherHospitalBuckets(context.Background(), OtherBucketsQuery{
		ExcludeHospitalID: 1,
		ComponentType:     domain.ComponentPlatelets,
		BloodType:         domain.BloodTypeB,
		Rh:                domain.RhNegative,
		Today:             testToday,
		MinTotalExclusive: IntPtr(domain.DonorWorthyAboveMl),
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].HospitalID)
	assert.Equal(t, "North", out[0].HospitalName)
	assert.Equal(t, 6000, out[0].TotalAmountMl)
}

func TestMemoryStore_NeedyOrderedAscending(t *testing.T) {
	s := seededStore()
	putBags(s, 2, domain.ComponentPlasma, domain.BloodTypeO, domain.RhNone, 400, 400, 400)
	putBags(s, 3, domain.ComponentPlasma, domain.BloodTypeO, domain.RhNone, 200)

	out, err := s.FetchOtherHospitalBuckets(context.Background(), OtherBucketsQuery{
		ExcludeHospitalID: 1,
		ComponentType:     domain.ComponentPlasma,
		BloodType:         domain.BloodTypeO,
		Today:             testToday,
		MaxTotalExclusive: IntPtr(domain.NeedyBelowMl),
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), out[0].HospitalID)
	assert.Equal(t, int64(2), out[1].HospitalID)
}

func TestMemoryStore_MutationsScopedByHospital(t *testing.T) {
	s := seededStore()
	bagID, err := s.CreateDonation(context.Background(), domain.ComponentRedBlood, 1, sampleFields())
	require.NoError(t, err)

	n, err := s.MutateActiveFlag(context.Background(), domain.ComponentRedBlood, bagID, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.DeleteDonation(context.Background(), domain.ComponentRedBlood, bagID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	d, err := s.GetDonation(context.Background(), domain.ComponentRedBlood, bagID)
	require.NoError(t, err)
	assert.True(t, d.Active)

	n, err = s.MutateActiveFlag(context.Background(), domain.ComponentRedBlood, bagID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteDonation(context.Background(), domain.ComponentRedBlood, bagID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.FetchRecordOwner(context.Background(), domain.ComponentRedBlood, bagID)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestMemoryStore_SearchDonations(t *testing.T) {
	s := seededStore()
	f := sampleFields()
	f.DonorName = "Maria Lopez"
	_, _ = s.CreateDonation(context.Background(), domain.ComponentRedBlood, 1, f)
	f.DonorName = "Tom Smith"
	id, _ := s.CreateDonation(context.Background(), domain.ComponentRedBlood, 1, f)
	_, _ = s.MutateActiveFlag(context.Background(), domain.ComponentRedBlood, id, 1, false)

	out, total, err := s.SearchDonations(context.Background(), 1, DonationsFilter{ComponentType: domain.ComponentRedBlood, Donor: "LOPEZ"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Maria Lopez", out[0].DonorName)

	_, total, _ = s.SearchDonations(context.Background(), 1, DonationsFilter{ComponentType: domain.ComponentRedBlood, OnlyInactive: true}, 1, 20)
	assert.Equal(t, 1, total)

	_, total, _ = s.SearchDonations(context.Background(), 1, DonationsFilter{ComponentType: domain.ComponentRedBlood, IncludeInactive: true}, 1, 20)
	assert.Equal(t, 2, total)

	out, total, _ = s.SearchDonations(context.Background(), 1, DonationsFilter{ComponentType: domain.ComponentRedBlood, IncludeInactive: true}, 2, 1)
	assert.Equal(t, 2, total)
	assert.Len(t, out, 1)

	// offset wraps negative
	out, total, err = s.SearchDonations(context.Background(), 1, DonationsFilter{ComponentType: domain.ComponentRedBlood, IncludeInactive: true}, 2305843009213693953, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, out)
}

func TestMemoryStore_PlasmaRhForcedEmpty(t *testing.T) {
	s := seededStore()
	d := s.PutDonation(domain.DonationRecord{
		ComponentType: domain.ComponentPlasma, BloodType: domain.BloodTypeAB, Rh: domain.RhPositive,
		AmountMl: 200, ExpirationDate: testToday.AddDate(0, 0, 1), HospitalID: 1, Active: true,
	})
	assert.Equal(t, domain.RhNone, d.Rh)
}

func TestMemoryStore_CountExpiring(t *testing.T) {
	s := seededStore()
	putBags(s, 1, domain.ComponentRedBlood, domain.BloodTypeO, domain.RhPositive, 450) // +10 days
	s.PutDonation(domain.DonationRecord{
		ComponentType: domain.ComponentRedBlood, BloodType: domain.BloodTypeO, Rh: domain.RhPositive,
		AmountMl: 300, ExpirationDate: testToday.AddDate(0, 0, 2), HospitalID: 1, Active: true,
	})

	out, err := s.CountExpiring(context.Background(), domain.ComponentRedBlood, testToday, testToday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Count)
	assert.Equal(t, 300, out[0].TotalAmountMl)
}
