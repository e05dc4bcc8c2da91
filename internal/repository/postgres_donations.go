package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bloodbank/internal/domain"
)

// PostgresDonationsRepository DonationsRepository over the *_inventory tables
type PostgresDonationsRepository struct {
	db *sql.DB
}

// NewPostgresDonationsRepository creates the repository.
func NewPostgresDonationsRepository(db *sql.DB) *PostgresDonationsRepository {
	return &PostgresDonationsRepository{db: db}
}

var _ DonationsRepository = (*PostgresDonationsRepository)(nil)

func donationColumns(ct domain.ComponentType) string {
	return "bag_id, donor_name, blood_type, " + rhSelect(ct, "") + " AS rh, amount, expiration_date, hospital_id, active"
}

func scanDonation(ct domain.ComponentType, scan func(dest ...any) error) (domain.DonationRecord, error) {
	d := domain.DonationRecord{ComponentType: ct}
	var bloodType, rh string
	err := scan(&d.BagID, &d.DonorName, &bloodType, &rh, &d.AmountMl, &d.ExpirationDate, &d.HospitalID, &d.Active)
	if err != nil {
		return d, err
	}
	d.BloodType = domain.BloodType(strings.TrimSpace(bloodType))
	d.Rh = domain.Rh(strings.TrimSpace(rh))
	d.ExpirationDate = domain.Day(d.ExpirationDate)
	return d, nil
}

// GetDonation loads one bag.
func (r *PostgresDonationsRepository) GetDonation(ctx context.Context, ct domain.ComponentType, bagID int64) (*domain.DonationRecord, error) {
	table, err := tableFor(ct)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE bag_id = $1`, donationColumns(ct), table)
	d, err := scanDonation(ct, r.db.QueryRowContext(ctx, query, bagID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("donation not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return &d, nil
}

// FetchRecordOwner returns the owning hospital of a bag.
func (r *PostgresDonationsRepository) FetchRecordOwner(ctx context.Context, ct domain.ComponentType, bagID int64) (int64, error) {
	table, err := tableFor(ct)
	if err != nil {
		return 0, err
	}

	var hospitalID int64
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT hospital_id FROM %s WHERE bag_id = $1`, table),
		bagID,
	).Scan(&hospitalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("donation not found: %w", err)
		}
		return 0, fmt.Errorf("failed to fetch record owner: %w", err)
	}
	return hospitalID, nil
}

// SearchDonations lists a hospital's bags with optional filters.
func (r *PostgresDonationsRepository) SearchDonations(ctx context.Context, hospitalID int64, filter DonationsFilter, page, size int) ([]domain.DonationRecord, int, error) {
	ct := filter.ComponentType
	table, err := tableFor(ct)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	where := []string{"hospital_id = $1"}
	args := []any{hospitalID}
	argIdx := 2

	switch {
	case filter.OnlyInactive:
		where = append(where, "active = FALSE")
	case !filter.IncludeInactive:
		where = append(where, "active = TRUE")
	}
	if filter.BloodType != "" {
		where = append(where, fmt.Sprintf("blood_type = $%d", argIdx))
		args = append(args, string(filter.BloodType))
		argIdx++
	}
	if filter.Rh != "" && ct.HasRh() {
		where = append(where, fmt.Sprintf("rh = $%d", argIdx))
		args = append(args, string(filter.Rh))
		argIdx++
	}
	if donor := strings.TrimSpace(filter.Donor); donor != "" {
		where = append(where, fmt.Sprintf("donor_name ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(donor)+"%")
		argIdx++
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count donations: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY expiration_date, bag_id
		LIMIT $%d OFFSET $%d
	`, donationColumns(ct), table, whereClause, argIdx, argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search donations: %w", err)
	}
	defer rows.Close()

	out := []domain.DonationRecord{}
	for rows.Next() {
		d, err := scanDonation(ct, rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan donation: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate donations: %w", err)
	}
	return out, total, nil
}

// CreateDonation inserts an active bag and returns its bag_id.
func (r *PostgresDonationsRepository) CreateDonation(ctx context.Context, ct domain.ComponentType, hospitalID int64, f domain.DonationFields) (int64, error) {
	table, err := tableFor(ct)
	if err != nil {
		return 0, err
	}

	var query string
	var args []any
	if ct.HasRh() {
		query = fmt.Sprintf(`
			INSERT INTO %s (donor_name, blood_type, rh, amount, expiration_date, hospital_id, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING bag_id`, table)
		args = []any{f.DonorName, string(f.BloodType), string(f.Rh), f.AmountMl, domain.Day(f.ExpirationDate), hospitalID}
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (donor_name, blood_type, amount, expiration_date, hospital_id, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING bag_id`, table)
		args = []any{f.DonorName, string(f.BloodType), f.AmountMl, domain.Day(f.ExpirationDate), hospitalID}
	}

	var bagID int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&bagID); err != nil {
		return 0, fmt.Errorf("failed to create donation: %w", err)
	}
	return bagID, nil
}

// UpdateDonation rewrites the editable fields of a bag owned by hospitalID.
func (r *PostgresDonationsRepository) UpdateDonation(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64, f domain.DonationFields) (int64, error) {
	table, err := tableFor(ct)
	if err != nil {
		return 0, err
	}

	var query string
	var args []any
	if ct.HasRh() {
		query = fmt.Sprintf(`
			UPDATE %s
			SET donor_name = $1, blood_type = $2, rh = $3, amount = $4, expiration_date = $5
			WHERE bag_id = $6 AND hospital_id = $7`, table)
		args = []any{f.DonorName, string(f.BloodType), string(f.Rh), f.AmountMl, domain.Day(f.ExpirationDate), bagID, hospitalID}
	} else {
		query = fmt.Sprintf(`
			UPDATE %s
			SET donor_name = $1, blood_type = $2, amount = $3, expiration_date = $4
			WHERE bag_id = $5 AND hospital_id = $6`, table)
		args = []any{f.DonorName, string(f.BloodType), f.AmountMl, domain.Day(f.ExpirationDate), bagID, hospitalID}
	}

	return r.exec(ctx, "update donation", query, args...)
}

// MutateActiveFlag sets active for a bag owned by hospitalID.
func (r *PostgresDonationsRepository) MutateActiveFlag(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64, active bool) (int64, error) {
	table, err := tableFor(ct)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE %s SET active = $1 WHERE bag_id = $2 AND hospital_id = $3`, table)
	return r.exec(ctx, "set active flag", query, active, bagID, hospitalID)
}

// DeleteDonation removes the row.
func (r *PostgresDonationsRepository) DeleteDonation(ctx context.Context, ct domain.ComponentType, bagID, hospitalID int64) (int64, error) {
	table, err := tableFor(ct)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE bag_id = $1 AND hospital_id = $2`, table)
	return r.exec(ctx, "delete donation", query, bagID, hospitalID)
}

func (r *PostgresDonationsRepository) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// escapeLike escapes ILIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
