package service

import (
	"context"
	"fmt"
	"time"

	"bloodbank/internal/cache"
	"bloodbank/internal/domain"
	"bloodbank/internal/repository"
)

const hospitalsListKey = "hospitals:all"

// HospitalService cached hospital lookups.
type HospitalService struct {
	repo repository.HospitalsRepository
	list *cache.TTLCache[[]domain.Hospital]
	byID *cache.TTLCache[domain.Hospital]
	ttl  time.Duration
}

func NewHospitalService(repo repository.HospitalsRepository, ttl time.Duration, clock cache.Clock) *HospitalService {
	return &HospitalService{
		repo: repo,
		list: cache.New[[]domain.Hospital](clock),
		byID: cache.New[domain.Hospital](clock),
		ttl:  ttl,
	}
}

func (s *HospitalService) ListHospitals(ctx context.Context) ([]domain.Hospital, error) {
	if cached, ok := s.list.Get(hospitalsListKey); ok {
		return cached, nil
	}
	hospitals, err := s.repo.ListHospitals(ctx)
	if err != nil {
		return nil, domain.Wrap("list_hospitals", err)
	}
	s.list.Set(hospitalsListKey, hospitals, s.ttl)
	return hospitals, nil
}

func (s *HospitalService) GetHospital(ctx context.Context, hospitalID int64) (*domain.Hospital, error) {
	key := fmt.Sprintf("hospital:%d", hospitalID)
	if cached, ok := s.byID.Get(key); ok {
		return &cached, nil
	}
	h, err := s.repo.GetHospital(ctx, hospitalID)
	if err != nil {
		return nil, domain.Wrap("get_hospital", err)
	}
	s.byID.Set(key, *h, s.ttl)
	return h, nil
}

// HospitalName best-effort display name; empty when the lookup fails.
func (s *HospitalService) HospitalName(ctx context.Context, hospitalID int64) string {
	h, err := s.GetHospital(ctx, hospitalID)
	if err != nil {
		return ""
	}
	return h.HospitalName
}
