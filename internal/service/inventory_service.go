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

// InventoryService per-hospital bucket aggregation with a short-lived cache.
type InventoryService struct {
	repo   repository.InventoryRepository
	cache  *cache.TTLCache[[]domain.InventoryBucket]
	ttl    time.Duration
	now    cache.Clock
	logger *zap.Logger
}

// NewInventoryService clock drives both "today" and cache expiry; nil means time.Now.
func NewInventoryService(repo repository.InventoryRepository, ttl time.Duration, clock cache.Clock, logger *zap.Logger) *InventoryService {
	if clock == nil {
		clock = time.Now
	}
	return &InventoryService{
		repo:   repo,
		cache:  cache.New[[]domain.InventoryBucket](clock),
		ttl:    ttl,
		now:    clock,
		logger: logger,
	}
}

func bucketCacheKey(ct domain.ComponentType, hospitalID int64) string {
	return fmt.Sprintf("%s:%d", ct, hospitalID)
}

// Today the calendar day of the service clock in its own location, as UTC midnight.
func (s *InventoryService) Today() time.Time {
	return domain.Day(s.now())
}

// Aggregate returns the hospital's active, unexpired buckets for one component type.
// Failures are logged and yield an empty list.
func (s *InventoryService) Aggregate(ctx context.Context, hospitalID int64, ct domain.ComponentType) []domain.InventoryBucket {
	buckets, err := s.Buckets(ctx, hospitalID, ct)
	if err != nil {
		s.logger.Error("Failed to aggregate inventory",
			zap.Int64("hospital_id", hospitalID),
			zap.String("component_type", string(ct)),
			zap.Error(err),
		)
		return []domain.InventoryBucket{}
	}
	return buckets
}

// Buckets like Aggregate but reports the error; only successful reads are cached.
func (s *InventoryService) Buckets(ctx context.Context, hospitalID int64, ct domain.ComponentType) ([]domain.InventoryBucket, error) {
	if !ct.Valid() {
		return nil, domain.NewValidationError("aggregate", fmt.Sprintf("invalid component type: %q", ct))
	}

	key := bucketCacheKey(ct, hospitalID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	buckets, err := s.repo.FetchActiveBuckets(ctx, hospitalID, ct, s.Today())
	if err != nil {
		return nil, domain.Wrap("aggregate", err)
	}
	domain.SortBuckets(buckets)
	s.cache.Set(key, buckets, s.ttl)
	return buckets, nil
}

// Lookup fresh (uncached) bucket for one key; a missing bucket is reported as zero stock.
func (s *InventoryService) Lookup(ctx context.Context, hospitalID int64, ct domain.ComponentType, bt domain.BloodType, rh domain.Rh) (domain.InventoryBucket, error) {
	s.Invalidate(hospitalID, ct)
	buckets, err := s.Buckets(ctx, hospitalID, ct)
	if err != nil {
		return domain.InventoryBucket{}, err
	}
	if !ct.HasRh() {
		rh = domain.RhNone
	}
	for _, b := range buckets {
		if b.BloodType == bt && b.Rh == rh {
			return b, nil
		}
	}
	return domain.InventoryBucket{HospitalID: hospitalID, ComponentType: ct, BloodType: bt, Rh: rh}, nil
}

// Invalidate drops the cached buckets for one (component, hospital).
func (s *InventoryService) Invalidate(hospitalID int64, ct domain.ComponentType) {
	s.cache.Invalidate(bucketCacheKey(ct, hospitalID))
}

// InvalidateAll drops every cached bucket list.
func (s *InventoryService) InvalidateAll() {
	s.cache.InvalidateAll()
}

// ExpiringStock active stock expiring within days, per hospital and component.
func (s *InventoryService) ExpiringStock(ctx context.Context, days int) ([]repository.ExpiringStock, error) {
	today := s.Today()
	until := today.AddDate(0, 0, days)
	var out []repository.ExpiringStock
	for _, ct := range domain.ComponentTypes {
		stock, err := s.repo.CountExpiring(ctx, ct, today, until)
		if err != nil {
			return nil, domain.Wrap("expiring_stock", err)
		}
		out = append(out, stock...)
	}
	return out, nil
}
