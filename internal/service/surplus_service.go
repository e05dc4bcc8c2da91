package service

import (
	"context"
	"fmt"
	"time"

	"bloodbank/internal/cache"
	"bloodbank/internal/domain"
	"bloodbank/internal/repository"

	"go.uber.org/zap"
)

// SurplusService cross-hospital surplus/shortage matching and band summaries.
//
// Results feed dashboards: any failure is logged and degrades to an empty list or
// zero summary, so callers must read [] as "no alerts or unknown".
type SurplusService struct {
	inventory *InventoryService
	repo      repository.InventoryRepository
	alerts    *cache.TTLCache[[]domain.SurplusAlert]
	summaries *cache.TTLCache[domain.SurplusSummary]
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSurplusService results are cached for ttl per hospital.
func NewSurplusService(inventory *InventoryService, repo repository.InventoryRepository, ttl time.Duration, clock cache.Clock, logger *zap.Logger) *SurplusService {
	return &SurplusService{
		inventory: inventory,
		repo:      repo,
		alerts:    cache.New[[]domain.SurplusAlert](clock),
		summaries: cache.New[domain.SurplusSummary](clock),
		ttl:       ttl,
		logger:    logger,
	}
}

// FindSurplusAlerts other hospitals holding donor-worthy stock (> DonorWorthyAboveMl)
// of every bucket where the caller is low or critical-low.
func (s *SurplusService) FindSurplusAlerts(ctx context.Context, hospitalID int64) []domain.SurplusAlert {
	return s.match(ctx, "find_surplus_alerts", hospitalID,
		func(b domain.InventoryBucket) bool { return b.Level().IsShortage() },
		func(q *repository.OtherBucketsQuery) { q.MinTotalExclusive = repository.IntPtr(domain.DonorWorthyAboveMl) },
	)
}

// FindHospitalsNeedingSurplus other hospitals below NeedyBelowMl in every bucket where
// the caller holds more than DonorWorthyAboveMl. Most needy first.
func (s *SurplusService) FindHospitalsNeedingSurplus(ctx context.Context, hospitalID int64) []domain.SurplusAlert {
	return s.match(ctx, "find_hospitals_needing_surplus", hospitalID,
		func(b domain.InventoryBucket) bool { return b.TotalAmountMl > domain.DonorWorthyAboveMl },
		func(q *repository.OtherBucketsQuery) { q.MaxTotalExclusive = repository.IntPtr(domain.NeedyBelowMl) },
	)
}

func (s *SurplusService) match(
	ctx context.Context,
	op string,
	hospitalID int64,
	selectOwn func(domain.InventoryBucket) bool,
	bound func(*repository.OtherBucketsQuery),
) []domain.SurplusAlert {
	key := fmt.Sprintf("%s:%d", op, hospitalID)
	if cached, ok := s.alerts.Get(key); ok {
		return cached
	}

	log := s.logger.With(zap.String("op", op), zap.Int64("hospital_id", hospitalID))
	today := s.inventory.Today()
	alerts := []domain.SurplusAlert{}
	complete := true

	for _, ct := range domain.ComponentTypes {
		own, err := s.inventory.Buckets(ctx, hospitalID, ct)
		if err != nil {
			log.Error("Failed to read own inventory", zap.String("component_type", string(ct)), zap.Error(err))
			return []domain.SurplusAlert{}
		}

		for _, b := range own {
			if !selectOwn(b) {
				continue
			}
			q := repository.OtherBucketsQuery{
				ExcludeHospitalID: hospitalID,
				ComponentType:     ct,
				BloodType:         b.BloodType,
				Rh:                b.Rh,
				Today:             today,
			}
			bound(&q)

			others, err := s.repo.FetchOtherHospitalBuckets(ctx, q)
			if err != nil {
				log.Error("Failed to match bucket, skipping",
					zap.String("component_type", string(ct)),
					zap.String("blood_type", string(b.BloodType)),
					zap.String("rh", string(b.Rh)),
					zap.Error(err),
				)
				complete = false
				continue
			}
			for _, o := range others {
				alerts = append(alerts, domain.SurplusAlert{
					ComponentType: ct,
					BloodType:     b.BloodType,
					Rh:            b.Rh,
					HospitalID:    o.HospitalID,
					HospitalName:  o.HospitalName,
					Count:         o.Count,
					YourCount:     b.Count,
					SurplusLevel:  domain.Classify(o.TotalAmountMl),
					TotalAmountMl: o.TotalAmountMl,
				})
			}
		}
	}

	if complete {
		s.alerts.Set(key, alerts, s.ttl)
	}
	return alerts
}

// Summarize counts the caller's buckets per band for each component type.
// Never fails: any error yields the zero summary.
func (s *SurplusService) Summarize(ctx context.Context, hospitalID int64) domain.SurplusSummary {
	key := fmt.Sprintf("surplus_summary:%d", hospitalID)
	if cached, ok := s.summaries.Get(key); ok {
		return cached
	}

	var summary domain.SurplusSummary
	for _, ct := range domain.ComponentTypes {
		buckets, err := s.inventory.Buckets(ctx, hospitalID, ct)
		if err != nil {
			s.logger.Error("Failed to summarize surplus",
				zap.Int64("hospital_id", hospitalID),
				zap.String("component_type", string(ct)),
				zap.Error(err),
			)
			return domain.SurplusSummary{}
		}
		counts := summary.For(ct)
		for _, b := range buckets {
			counts.Add(b.Level())
		}
	}

	s.summaries.Set(key, summary, s.ttl)
	return summary
}

// InvalidateAll any stock change can move another hospital's alerts, so mutations
// drop every cached alert list and summary.
func (s *SurplusService) InvalidateAll() {
	s.alerts.InvalidateAll()
	s.summaries.InvalidateAll()
}
