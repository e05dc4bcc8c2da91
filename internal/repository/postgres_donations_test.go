package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"bloodbank/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() domain.DonationFields {
	return domain.DonationFields{
		DonorName:      "Jane Roe",
		BloodType:      domain.BloodTypeO,
		Rh:             domain.RhNegative,
		AmountMl:       450,
		ExpirationDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchRecordOwner(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT hospital_id FROM platelets_inventory WHERE bag_id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"hospital_id"}).AddRow(3))

	owner, err := repo.FetchRecordOwner(context.Background(), domain.ComponentPlatelets, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), owner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRecordOwner_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	mock.ExpectQuery(`SELECT hospital_id FROM plasma_inventory`).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FetchRecordOwner(context.Background(), domain.ComponentPlasma, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestMutateActiveFlag_ScopedByHospital(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE red_blood_inventory SET active = $1 WHERE bag_id = $2 AND hospital_id = $3`)).
		WithArgs(false, int64(9), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.MutateActiveFlag(context.Background(), domain.ComponentRedBlood, 9, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDonation_RedBlood(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	f := sampleFields()
	mock.ExpectQuery(`INSERT INTO red_blood_inventory \(donor_name, blood_type, rh, amount, expiration_date, hospital_id, active\)`).
		WithArgs("Jane Roe", "O", "-", 450, f.ExpirationDate, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"bag_id"}).AddRow(101))

	bagID, err := repo.CreateDonation(context.Background(), domain.ComponentRedBlood, 1, f)
	require.NoError(t, err)
	assert.Equal(t, int64(101), bagID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDonation_PlasmaSkipsRh(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	f := sampleFields()
	mock.ExpectQuery(`INSERT INTO plasma_inventory \(donor_name, blood_type, amount, expiration_date, hospital_id, active\)`).
		WithArgs("Jane Roe", "O", 450, f.ExpirationDate, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"bag_id"}).AddRow(5))

	bagID, err := repo.CreateDonation(context.Background(), domain.ComponentPlasma, 1, f)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bagID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDonation_NoRowsForOtherHospital(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	f := sampleFields()
	mock.ExpectExec(`UPDATE platelets_inventory\s+SET donor_name = \$1, blood_type = \$2, rh = \$3, amount = \$4, expiration_date = \$5\s+WHERE bag_id = \$6 AND hospital_id = \$7`).
		WithArgs("Jane Roe", "O", "-", 450, f.ExpirationDate, int64(9), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.UpdateDonation(context.Background(), domain.ComponentPlatelets, 9, 2, f)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDonation(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM plasma_inventory WHERE bag_id = $1 AND hospital_id = $2`)).
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.DeleteDonation(context.Background(), domain.ComponentPlasma, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSearchDonations_FiltersAreBound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM red_blood_inventory WHERE hospital_id = $1 AND active = TRUE AND blood_type = $2 AND rh = $3 AND donor_name ILIKE $4`)).
		WithArgs(int64(1), "A", "+", "%o'%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`LIMIT \$5 OFFSET \$6`).
		WithArgs(int64(1), "A", "+", "%o'%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"bag_id", "donor_name", "blood_type", "rh", "amount", "expiration_date", "hospital_id", "active"}).
			AddRow(11, "John O'Neil", "A", "+", 400, exp, 1, true))

	out, total, err := repo.SearchDonations(context.Background(), 1, DonationsFilter{
		ComponentType: domain.ComponentRedBlood,
		BloodType:     domain.BloodTypeA,
		Rh:            domain.RhPositive,
		Donor:         "o'",
	}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, out, 1)
	assert.Equal(t, "John O'Neil", out[0].DonorName)
	assert.Equal(t, domain.ComponentRedBlood, out[0].ComponentType)
	assert.True(t, out[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchDonations_OnlyInactive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresDonationsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM plasma_inventory WHERE hospital_id = $1 AND active = FALSE`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs(int64(1), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"bag_id", "donor_name", "blood_type", "rh", "amount", "expiration_date", "hospital_id", "active"}))

	out, total, err := repo.SearchDonations(context.Background(), 1, DonationsFilter{
		ComponentType: domain.ComponentPlasma,
		Rh:            domain.RhPositive, // ignored for plasma
		OnlyInactive:  true,
	}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdminByUsername(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresHospitalsRepository(db)

	mock.ExpectQuery(`FROM admins\s+WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"admin_id", "hospital_id", "username", "password_hash"}).
			AddRow(1, 2, "alice", "$2a$10$hash"))

	a, err := repo.GetAdminByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.HospitalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHospitals(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresHospitalsRepository(db)

	mock.ExpectQuery(`FROM hospitals\s+ORDER BY hospital_name`).
		WillReturnRows(sqlmock.NewRows([]string{"hospital_id", "hospital_name", "address"}).
			AddRow(1, "Central", "1 Main St").
			AddRow(2, "North", ""))

	out, err := repo.ListHospitals(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Central", out[0].HospitalName)
}
