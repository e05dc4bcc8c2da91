package repository

import (
	"context"
	"database/sql"
	"fmt"

	"bloodbank/internal/domain"
)

// PostgresHospitalsRepository hospitals + admins tables
type PostgresHospitalsRepository struct {
	db *sql.DB
}

// NewPostgresHospitalsRepository creates the repository.
func NewPostgresHospitalsRepository(db *sql.DB) *PostgresHospitalsRepository {
	return &PostgresHospitalsRepository{db: db}
}

var (
	_ HospitalsRepository = (*PostgresHospitalsRepository)(nil)
	_ AdminsRepository    = (*PostgresHospitalsRepository)(nil)
)

// ListHospitals all hospitals ordered by name.
func (r *PostgresHospitalsRepository) ListHospitals(ctx context.Context) ([]domain.Hospital, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hospital_id, hospital_name, COALESCE(address, '')
		FROM hospitals
		ORDER BY hospital_name, hospital_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	defer rows.Close()

	out := []domain.Hospital{}
	for rows.Next() {
		var h domain.Hospital
		if err := rows.Scan(&h.HospitalID, &h.HospitalName, &h.Address); err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospitals: %w", err)
	}
	return out, nil
}

// GetHospital by id.
func (r *PostgresHospitalsRepository) GetHospital(ctx context.Context, hospitalID int64) (*domain.Hospital, error) {
	var h domain.Hospital
	err := r.db.QueryRowContext(ctx, `
		SELECT hospital_id, hospital_name, COALESCE(address, '')
		FROM hospitals
		WHERE hospital_id = $1
	`, hospitalID).Scan(&h.HospitalID, &h.HospitalName, &h.Address)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("hospital not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return &h, nil
}

// GetAdminByUsername login lookup.
func (r *PostgresHospitalsRepository) GetAdminByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	var a domain.Admin
	err := r.db.QueryRowContext(ctx, `
		SELECT admin_id, hospital_id, username, password_hash
		FROM admins
		WHERE username = $1
	`, username).Scan(&a.AdminID, &a.HospitalID, &a.Username, &a.PasswordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("admin not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &a, nil
}
