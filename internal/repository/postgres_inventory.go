package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bloodbank/internal/domain"
)

// PostgresInventoryRepository InventoryRepository over the *_inventory tables
type PostgresInventoryRepository struct {
	db *sql.DB
}

// NewPostgresInventoryRepository creates the repository.
func NewPostgresInventoryRepository(db *sql.DB) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{db: db}
}

var _ InventoryRepository = (*PostgresInventoryRepository)(nil)

// tableFor resolves the table name from the closed ComponentType enum.
func tableFor(ct domain.ComponentType) (string, error) {
	table := ct.Table()
	if table == "" {
		return "", domain.NewValidationError("inventory", fmt.Sprintf("invalid component type: %q", ct))
	}
	return table, nil
}

// rhSelect plasma has no rh column.
func rhSelect(ct domain.ComponentType, alias string) string {
	if !ct.HasRh() {
		return "''"
	}
	if alias != "" {
		return "COALESCE(" + alias + ".rh, '')"
	}
	return "COALESCE(rh, '')"
}

// FetchActiveBuckets groups one hospital's stock by blood type and rh.
func (r *PostgresInventoryRepository) FetchActiveBuckets(ctx context.Context, hospitalID int64, ct domain.ComponentType, today time.Time) ([]domain.InventoryBucket, error) {
	table, err := tableFor(ct)
	if err != nil {
		return nil, err
	}

	groupBy := "blood_type"
	orderBy := "blood_type"
	if ct.HasRh() {
		groupBy = "blood_type, rh"
		orderBy = "blood_type, rh"
	}

	query := fmt.Sprintf(`
		SELECT
			blood_type,
			%s AS rh,
			COUNT(*) AS unit_count,
			COALESCE(SUM(amount), 0) AS total_amount
		FROM %s
		WHERE hospital_id = $1
		  AND active = TRUE
		  AND expiration_date > $2
		GROUP BY %s
		ORDER BY %s
	`, rhSelect(ct, ""), table, groupBy, orderBy)

	rows, err := r.db.QueryContext(ctx, query, hospitalID, domain.Day(today))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active buckets: %w", err)
	}
	defer rows.Close()

	buckets := []domain.InventoryBucket{}
	for rows.Next() {
		b := domain.InventoryBucket{HospitalID: hospitalID, ComponentType: ct}
		var bloodType, rh string
		if err := rows.Scan(&bloodType, &rh, &b.Count, &b.TotalAmountMl); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		b.BloodType = domain.BloodType(strings.TrimSpace(bloodType))
		b.Rh = domain.Rh(strings.TrimSpace(rh))
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buckets: %w", err)
	}
	return buckets, nil
}

// FetchOtherHospitalBuckets totals per other hospital for one bucket key.
func (r *PostgresInventoryRepository) FetchOtherHospitalBuckets(ctx context.Context, q OtherBucketsQuery) ([]domain.HospitalBucket, error) {
	table, err := tableFor(q.ComponentType)
	if err != nil {
		return nil, err
	}

	where := []string{
		"i.hospital_id <> $1",
		"i.active = TRUE",
		"i.expiration_date > $2",
		"i.blood_type = $3",
	}
	args := []any{q.ExcludeHospitalID, domain.Day(q.Today), string(q.BloodType)}
	argIdx := 4

	if q.ComponentType.HasRh() {
		where = append(where, fmt.Sprintf("i.rh = $%d", argIdx))
		args = append(args, string(q.Rh))
		argIdx++
	}

	var having []string
	if q.MinTotalExclusive != nil {
		having = append(having, fmt.Sprintf("SUM(i.amount) > $%d", argIdx))
		args = append(args, *q.MinTotalExclusive)
		argIdx++
	}
	if q.MaxTotalExclusive != nil {
		having = append(having, fmt.Sprintf("SUM(i.amount) < $%d", argIdx))
		args = append(args, *q.MaxTotalExclusive)
		argIdx++
	}
	havingClause := ""
	if len(having) > 0 {
		havingClause = "HAVING " + strings.Join(having, " AND ")
	}

	order := "total_amount DESC, i.hospital_id"
	if q.MinTotalExclusive == nil && q.MaxTotalExclusive != nil {
		order = "total_amount ASC, i.hospital_id"
	}

	query := fmt.Sprintf(`
		SELECT
			i.hospital_id,
			h.hospital_name,
			COUNT(*) AS unit_count,
			COALESCE(SUM(i.amount), 0) AS total_amount
		FROM %s i
		JOIN hospitals h ON h.hospital_id = i.hospital_id
		WHERE %s
		GROUP BY i.hospital_id, h.hospital_name
		%s
		ORDER BY %s
	`, table, strings.Join(where, " AND "), havingClause, order)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch other hospital buckets: %w", err)
	}
	defer rows.Close()

	out := []domain.HospitalBucket{}
	for rows.Next() {
		var hb domain.HospitalBucket
		if err := rows.Scan(&hb.HospitalID, &hb.HospitalName, &hb.Count, &hb.TotalAmountMl); err != nil {
			return nil, fmt.Errorf("failed to scan hospital bucket: %w", err)
		}
		out = append(out, hb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hospital buckets: %w", err)
	}
	return out, nil
}

// CountExpiring active bags expiring within (today, until], grouped by hospital.
func (r *PostgresInventoryRepository) CountExpiring(ctx context.Context, ct domain.ComponentType, today, until time.Time) ([]ExpiringStock, error) {
	table, err := tableFor(ct)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			i.hospital_id,
			h.hospital_name,
			COUNT(*) AS unit_count,
			COALESCE(SUM(i.amount), 0) AS total_amount
		FROM %s i
		JOIN hospitals h ON h.hospital_id = i.hospital_id
		WHERE i.active = TRUE
		  AND i.expiration_date > $1
		  AND i.expiration_date <= $2
		GROUP BY i.hospital_id, h.hospital_name
		ORDER BY i.hospital_id
	`, table)

	rows, err := r.db.QueryContext(ctx, query, domain.Day(today), domain.Day(until))
	if err != nil {
		return nil, fmt.Errorf("failed to count expiring stock: %w", err)
	}
	defer rows.Close()

	out := []ExpiringStock{}
	for rows.Next() {
		s := ExpiringStock{ComponentType: ct}
		if err := rows.Scan(&s.HospitalID, &s.HospitalName, &s.Count, &s.TotalAmountMl); err != nil {
			return nil, fmt.Errorf("failed to scan expiring stock: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expiring stock: %w", err)
	}
	return out, nil
}
