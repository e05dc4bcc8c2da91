package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bloodbank/internal/domain"
)

// MemoryStore in-memory implementation of every repository, used when the DB is
// disabled or unreachable and by service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	donations map[domain.ComponentType]map[int64]domain.DonationRecord
	nextBagID map[domain.ComponentType]int64
	hospitals map[int64]domain.Hospital
	admins    map[string]domain.Admin
	nextAdmin int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		donations: map[domain.ComponentType]map[int64]domain.DonationRecord{},
		nextBagID: map[domain.ComponentType]int64{},
		hospitals: map[int64]domain.Hospital{},
		admins:    map[string]domain.Admin{},
	}
	for _, ct := range domain.ComponentTypes {
		s.donations[ct] = map[int64]domain.DonationRecord{}
	}
	return s
}

var (
	_ InventoryRepository = (*MemoryStore)(nil)
	_ DonationsRepository = (*MemoryStore)(nil)
	_ HospitalsRepository = (*MemoryStore)(nil)
	_ AdminsRepository    = (*MemoryStore)(nil)
)

// UpsertHospital seeds a hospital.
func (s *MemoryStore) UpsertHospital(h domain.Hospital) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[h.HospitalID] = h
}

// UpsertAdmin seeds an admin; passwordHash must already be a bcrypt hash.
func (s *MemoryStore) UpsertAdmin(hospitalID int64, username, passwordHash string) domain.Admin {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[username]
	if !ok {
		s.nextAdmin++
		a.AdminID = s.nextAdmin
	}
	a.HospitalID = hospitalID
	a.Username = username
	a.PasswordHash = passwordHash
	s.admins[username] = a
	return a
}

// PutDonation inserts or replaces a record verbatim (bag id assigned when zero).
func (s *MemoryStore) PutDonation(d domain.DonationRecord) domain.DonationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.BagID == 0 {
		s.nextBagID[d.ComponentType]++
		d.BagID = s.nextBagID[d.ComponentType]
	} else if d.BagID > s.nextBagID[d.ComponentType] {
		s.nextBagID[d.ComponentType] = d.BagID
	}
	if !d.ComponentType.HasRh() {
		d.Rh = domain.RhNone
	}
	s.donations[d.ComponentType][d.BagID] = d
	return d
}

func (s *MemoryStore) table(ct domain.ComponentType) (map[int64]domain.DonationRecord, error) {
	t, ok := s.donations[ct]
	if !ok {
		return nil, domain.NewValidationError("inventory", fmt.Sprintf("invalid component type: %q", ct))
	}
	return t, nil
}

// ========== InventoryRepository ==========

func (s *MemoryStore) FetchActiveBuckets(_ context.Context, hospitalID int64, ct domain.ComponentType, today time.Time) ([]domain.InventoryBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(ct)
	if err != nil {
		return nil, err
	}
	var records []domain.DonationRecord
	for _, d := range t {
		if d.HospitalID == hospitalID {
			records = append(records, d)
		}
	}
	return domain.AggregateRecords(records, today), nil
}

func (s *MemoryStore) FetchOtherHospitalBuckets(_ context.Context, q OtherBucketsQuery) ([]domain.HospitalBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(q.ComponentType)
	if err != nil {
		return nil, err
	}

	var records []domain.DonationRecord
	for _, d := range t {
		if d.HospitalID == q.ExcludeHospitalID || d.BloodType != q.BloodType {
			continue
		}
		if q.ComponentType.HasRh() && d.Rh != q.Rh {
			continue
		}
		records = append(records, d)
	}

	out := []domain.HospitalBucket{}
	for _, b := range domain.AggregateRecords(records, q.Today) {
		if q.MinTotalExclusive != nil && !(b.TotalAmountMl > *q.MinTotalExclusive) {
			continue
		}
		if q.MaxTotalExclusive != nil && !(b.TotalAmountMl < *q.MaxTotalExclusive) {
			continue
		}
		out = append(out, domain.HospitalBucket{
			HospitalID:    b.HospitalID,
			HospitalName:  s.hospitals[b.HospitalID].HospitalName,
			Count:         b.Count,
			TotalAmountMl: b.TotalAmountMl,
		})
	}

	ascending := q.MinTotalExclusive == nil && q.MaxTotalExclusive != nil
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalAmountMl != out[j].TotalAmountMl {
			if ascending {
				return out[i].TotalAmountMl < out[j].TotalAmountMl
			}
			return out[i].TotalAmountMl > out[j].TotalAmountMl
		}
		return out[i].HospitalID < out[j].HospitalID
	})
	return out, nil
}

func (s *MemoryStore) CountExpiring(_ context.Context, ct domain.ComponentType, today, until time.Time) ([]ExpiringStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(ct)
	if err != nil {
		return nil, err
	}

	limit := domain.Day(until)
	byHospital := map[int64]*ExpiringStock{}
	for _, d := range t {
		if !d.Counts(today) || domain.Day(d.ExpirationDate).After(limit) {
			continue
		}
		es, ok := byHospital[d.HospitalID]
		if !ok {
			es = &ExpiringStock{
				HospitalID:    d.HospitalID,
				HospitalName:  s.hospitals[d.HospitalID].HospitalName,
				ComponentType: ct,
			}
			byHospital[d.HospitalID] = es
		}
		es.Count++
		es.TotalAmountMl += d.AmountMl
	}

	out := make([]ExpiringStock, 0, len(byHospital))
	for _, es := range byHospital {
		out = append(out, *es)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HospitalID < out[j].HospitalID })
	return out, nil
}

// ========== DonationsRepository ==========

func (s *MemoryStore) GetDonation(_ context.Context, ct domain.ComponentType, bagID int64) (*domain.DonationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(ct)
	if err != nil {
		return nil, err
	}
	d, ok := t[bagID]
	if !ok {
		return nil, fmt.Errorf("donation not found: %w", sql.ErrNoRows)
	}
	return &d, nil
}

func (s *MemoryStore) FetchRecordOwner(ctx context.Context, ct domain.ComponentType, bagID int64) (int64, error) {
	d, err := s.GetDonation(ctx, ct, bagID)
	if err != nil {
		return 0, err
	}
	return d.HospitalID, nil
}

func (s *MemoryStore) SearchDonations(_ context.Context, hospitalID int64, filter DonationsFilter, page, size int) ([]domain.DonationRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(filter.ComponentType)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	donor := strings.ToLower(strings.TrimSpace(filter.Donor))
	all := []domain.DonationRecord{}
	for _, d := range t {
		if d.HospitalID != hospitalID {
			continue
		}
		if filter.OnlyInactive && d.Active {
			continue
		}
		if !filter.OnlyInactive && !filter.IncludeInactive && !d.Active {
			continue
		}
		if filter.BloodType != "" && d.BloodType != filter.BloodType {
			continue
		}
		if filter.Rh != "" && filter.ComponentType.HasRh() && d.Rh != filter.Rh {
			continue
		}
		if donor != "" && !strings.Contains(strings.ToLower(d.DonorName), donor) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ExpirationDate.Equal(all[j].ExpirationDate) {
			return all[i].ExpirationDate.Before(all[j].ExpirationDate)
		}
		return all[i].BagID < all[j].BagID
	})

	total := len(all)
	start := (page - 1) * size
	if start < 0 || start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) CreateDonation(_ context.Context, ct domain.ComponentType, hospitalID int64, f domain.DonationFields) (int64, error) {
	if _, err := s.table(ct); err != nil {
		return 0, err
	}
	d := s.PutDonation(domain.DonationRecord{
		ComponentType:  ct,
		DonorName:      f.DonorName,
		BloodType:      f.BloodType,
		Rh:             f.Rh,
		AmountMl:       f.AmountMl,
		ExpirationDate: domain.Day(f.ExpirationDate),
		HospitalID:     hospitalID,
		Active:         true,
	})
	return d.BagID, nil
}

func (s *MemoryStore) UpdateDonation(_ context.Context, ct domain.ComponentType, bagID, hospitalID int64, f domain.DonationFields) (int64, error) {
	return s.mutate(ct, bagID, hospitalID, func(d *domain.DonationRecord) {
		d.DonorName = f.DonorName
		d.BloodType = f.BloodType
		if ct.HasRh() {
			d.Rh = f.Rh
		}
		d.AmountMl = f.AmountMl
		d.ExpirationDate = domain.Day(f.ExpirationDate)
	})
}

func (s *MemoryStore) MutateActiveFlag(_ context.Context, ct domain.ComponentType, bagID, hospitalID int64, active bool) (int64, error) {
	return s.mutate(ct, bagID, hospitalID, func(d *domain.DonationRecord) {
		d.Active = active
	})
}

func (s *MemoryStore) DeleteDonation(_ context.Context, ct domain.ComponentType, bagID, hospitalID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(ct)
	if err != nil {
		return 0, err
	}
	d, ok := t[bagID]
	if !ok || d.HospitalID != hospitalID {
		return 0, nil
	}
	delete(t, bagID)
	return 1, nil
}

// mutate applies fn to the bag when it exists and belongs to hospitalID
// (the in-memory equivalent of WHERE bag_id = $1 AND hospital_id = $2).
func (s *MemoryStore) mutate(ct domain.ComponentType, bagID, hospitalID int64, fn func(d *domain.DonationRecord)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(ct)
	if err != nil {
		return 0, err
	}
	d, ok := t[bagID]
	if !ok || d.HospitalID != hospitalID {
		return 0, nil
	}
	fn(&d)
	t[bagID] = d
	return 1, nil
}

// ========== HospitalsRepository / AdminsRepository ==========

func (s *MemoryStore) ListHospitals(_ context.Context) ([]domain.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Hospital, 0, len(s.hospitals))
	for _, h := range s.hospitals {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HospitalName != out[j].HospitalName {
			return out[i].HospitalName < out[j].HospitalName
		}
		return out[i].HospitalID < out[j].HospitalID
	})
	return out, nil
}

func (s *MemoryStore) GetHospital(_ context.Context, hospitalID int64) (*domain.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hospitals[hospitalID]
	if !ok {
		return nil, fmt.Errorf("hospital not found: %w", sql.ErrNoRows)
	}
	return &h, nil
}

func (s *MemoryStore) GetAdminByUsername(_ context.Context, username string) (*domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return nil, fmt.Errorf("admin not found: %w", sql.ErrNoRows)
	}
	return &a, nil
}
