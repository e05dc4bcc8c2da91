package service

import (
	"context"
	"fmt"
	"time"

	"bloodbank/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiryScheduler daily sweep for active stock close to its expiration date.
type ExpiryScheduler struct {
	cron      *cron.Cron
	cronExpr  string
	warnDays  int
	inventory *InventoryService
	notifier  Notifier
	logger    *zap.Logger
}

// NewExpiryScheduler cronExpr is a standard 5-field cron expression evaluated in loc.
func NewExpiryScheduler(cronExpr string, warnDays int, loc *time.Location, inventory *InventoryService, notifier Notifier, logger *zap.Logger) *ExpiryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if notifier == nil {
		notifier = MultiNotifier(nil)
	}
	return &ExpiryScheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		cronExpr:  cronExpr,
		warnDays:  warnDays,
		inventory: inventory,
		notifier:  notifier,
		logger:    logger,
	}
}

// Start registers the sweep and starts the cron runner.
func (s *ExpiryScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronExpr, s.run); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep %q: %w", s.cronExpr, err)
	}
	s.logger.Info("Starting expiry scheduler", zap.String("cron", s.cronExpr), zap.Int("warn_days", s.warnDays))
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpiryScheduler) Stop() {
	s.logger.Info("Stopping expiry scheduler")
	<-s.cron.Stop().Done()
}

func (s *ExpiryScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
	}
}

// Sweep sends one ExpiryNotice per (hospital, component) with stock expiring within
// warnDays and returns the notices.
func (s *ExpiryScheduler) Sweep(ctx context.Context) ([]domain.ExpiryNotice, error) {
	stock, err := s.inventory.ExpiringStock(ctx, s.warnDays)
	if err != nil {
		return nil, err
	}

	asOf := s.inventory.Today()
	notices := make([]domain.ExpiryNotice, 0, len(stock))
	for _, st := range stock {
		n := domain.ExpiryNotice{
			HospitalID:    st.HospitalID,
			HospitalName:  st.HospitalName,
			ComponentType: st.ComponentType,
			Count:         st.Count,
			TotalAmountMl: st.TotalAmountMl,
			WithinDays:    s.warnDays,
			AsOf:          asOf,
		}
		s.logger.Info("Stock expiring soon",
			zap.Int64("hospital_id", n.HospitalID),
			zap.String("component_type", string(n.ComponentType)),
			zap.Int("count", n.Count),
			zap.Int("total_amount_ml", n.TotalAmountMl),
		)
		if err := s.notifier.NotifyExpiry(ctx, n); err != nil {
			s.logger.Warn("Failed to send expiry notice", zap.Int64("hospital_id", n.HospitalID), zap.Error(err))
		}
		notices = append(notices, n)
	}
	return notices, nil
}
