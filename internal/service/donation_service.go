package service

import (
	"context"
	"math"
	"sync"
	"time"

	"bloodbank/internal/cache"
	"bloodbank/internal/domain"
	"bloodbank/internal/repository"

	"go.uber.org/zap"
)

// Guard failure messages surfaced to the client verbatim.
const (
	MsgEntryNotFound = "Entry not found"
	MsgNoPermission  = "You don't have permission to modify this entry"
)

const (
	exportPageSize = 500
	maxExportRows  = 50000
)

// notifyTimeout bounds one outbound shortage notice; the mutation never waits for it.
const notifyTimeout = 30 * time.Second

// MutationResult envelope returned by the guard and by every mutation.
// Kind is set on failure and drives the HTTP status.
type MutationResult struct {
	Success  bool                   `json:"success"`
	Error    string                 `json:"error,omitempty"`
	Details  string                 `json:"details,omitempty"`
	Kind     domain.ErrorKind       `json:"-"`
	Donation *domain.DonationRecord `json:"donation,omitempty"`
}

func succeeded() MutationResult { return MutationResult{Success: true} }

func failed(kind domain.ErrorKind, msg, details string) MutationResult {
	return MutationResult{Success: false, Error: msg, Details: details, Kind: kind}
}

func failedWith(msg string, err error) MutationResult {
	return failed(domain.KindOf(err), msg, domain.MessageOf(err))
}

// DonationService donation lifecycle: add, update, soft-delete, restore, hard delete,
// search and export. Every mutation is preceded by the ownership guard and scoped by
// hospital_id in the statement itself.
type DonationService struct {
	donations repository.DonationsRepository
	inventory *InventoryService
	surplus   *SurplusService
	hospitals *HospitalService
	events    EventPublisher
	notifier  Notifier
	now       cache.Clock
	logger    *zap.Logger
	pending   sync.WaitGroup
}

// NewDonationService nil events/notifier disable publishing and notices.
func NewDonationService(
	donations repository.DonationsRepository,
	inventory *InventoryService,
	surplus *SurplusService,
	hospitals *HospitalService,
	events EventPublisher,
	notifier Notifier,
	clock cache.Clock,
	logger *zap.Logger,
) *DonationService {
	if events == nil {
		events = NoopEventPublisher{}
	}
	if notifier == nil {
		notifier = MultiNotifier(nil)
	}
	if clock == nil {
		clock = time.Now
	}
	return &DonationService{
		donations: donations,
		inventory: inventory,
		surplus:   surplus,
		hospitals: hospitals,
		events:    events,
		notifier:  notifier,
		now:       clock,
		logger:    logger,
	}
}

// VerifyOwnership succeeds only when bagID exists in ct's table and belongs to hospitalID.
func (s *DonationService) VerifyOwnership(ctx context.Context, bagID int64, ct domain.ComponentType, hospitalID int64) MutationResult {
	if !ct.Valid() {
		return failed(domain.KindValidation, "Invalid component type", string(ct))
	}
	owner, err := s.donations.FetchRecordOwner(ctx, ct, bagID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return failed(domain.KindNotFound, MsgEntryNotFound, "")
		}
		s.logger.Error("Failed to verify ownership",
			zap.Int64("bag_id", bagID),
			zap.String("component_type", string(ct)),
			zap.Error(err),
		)
		return failedWith("Failed to verify ownership", err)
	}
	if owner != hospitalID {
		s.logger.Warn("Ownership check rejected",
			zap.Int64("bag_id", bagID),
			zap.String("component_type", string(ct)),
			zap.Int64("hospital_id", hospitalID),
			zap.Int64("owner_hospital_id", owner),
		)
		return failed(domain.KindAuthentication, MsgNoPermission, "")
	}
	return succeeded()
}

// Add records a new active bag for hospitalID.
func (s *DonationService) Add(ctx context.Context, hospitalID int64, ct domain.ComponentType, fields domain.DonationFields) MutationResult {
	if !ct.Valid() {
		return failed(domain.KindValidation, "Invalid component type", string(ct))
	}
	if err := fields.Validate(ct); err != nil {
		return failed(domain.KindValidation, domain.MessageOf(err), "")
	}

	bagID, err := s.donations.CreateDonation(ctx, ct, hospitalID, fields)
	if err != nil {
		s.logger.Error("Failed to add donation", zap.Int64("hospital_id", hospitalID), zap.Error(err))
		return failedWith("Failed to add entry", err)
	}

	s.afterMutation(ctx, domain.EventDonationAdded, hospitalID, ct, bagID)

	res := succeeded()
	res.Donation = &domain.DonationRecord{
		BagID:          bagID,
		ComponentType:  ct,
		DonorName:      fields.DonorName,
		BloodType:      fields.BloodType,
		Rh:             fields.Rh,
		AmountMl:       fields.AmountMl,
		ExpirationDate: fields.ExpirationDate,
		HospitalID:     hospitalID,
		Active:         true,
	}
	return res
}

// Update rewrites the editable fields of a bag the caller owns.
func (s *DonationService) Update(ctx context.Context, hospitalID int64, ct domain.ComponentType, bagID int64, fields domain.DonationFields) MutationResult {
	if !ct.Valid() {
		return failed(domain.KindValidation, "Invalid component type", string(ct))
	}
	if err := fields.Validate(ct); err != nil {
		return failed(domain.KindValidation, domain.MessageOf(err), "")
	}
	return s.guarded(ctx, domain.EventDonationUpdated, "Failed to update entry", hospitalID, ct, bagID,
		func() (int64, error) { return s.donations.UpdateDonation(ctx, ct, bagID, hospitalID, fields) },
	)
}

// SoftDelete marks a bag inactive; the row is kept and can be restored.
func (s *DonationService) SoftDelete(ctx context.Context, hospitalID int64, ct domain.ComponentType, bagID int64) MutationResult {
	return s.guarded(ctx, domain.EventDonationSoftDeleted, "Failed to delete entry", hospitalID, ct, bagID,
		func() (int64, error) { return s.donations.MutateActiveFlag(ctx, ct, bagID, hospitalID, false) },
	)
}

// Restore reverses SoftDelete.
func (s *DonationService) Restore(ctx context.Context, hospitalID int64, ct domain.ComponentType, bagID int64) MutationResult {
	return s.guarded(ctx, domain.EventDonationRestored, "Failed to restore entry", hospitalID, ct, bagID,
		func() (int64, error) { return s.donations.MutateActiveFlag(ctx, ct, bagID, hospitalID, true) },
	)
}

// HardDelete removes the row permanently (legacy administrative operation).
func (s *DonationService) HardDelete(ctx context.Context, hospitalID int64, ct domain.ComponentType, bagID int64) MutationResult {
	return s.guarded(ctx, domain.EventDonationDeleted, "Failed to delete entry", hospitalID, ct, bagID,
		func() (int64, error) { return s.donations.DeleteDonation(ctx, ct, bagID, hospitalID) },
	)
}

// guarded runs the ownership guard, the mutation, then cache invalidation, the
// change event and the shortage check for the bag's original bucket.
func (s *DonationService) guarded(
	ctx context.Context,
	eventType string,
	failMsg string,
	hospitalID int64,
	ct domain.ComponentType,
	bagID int64,
	mutate func() (int64, error),
) MutationResult {
	if res := s.VerifyOwnership(ctx, bagID, ct, hospitalID); !res.Success {
		return res
	}

	prev, err := s.donations.GetDonation(ctx, ct, bagID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return failed(domain.KindNotFound, MsgEntryNotFound, "")
		}
		return failedWith(failMsg, err)
	}
	before, beforeErr := s.inventory.Lookup(ctx, hospitalID, ct, prev.BloodType, prev.Rh)

	affected, err := mutate()
	if err != nil {
		s.logger.Error(failMsg,
			zap.String("event_type", eventType),
			zap.Int64("bag_id", bagID),
			zap.Int64("hospital_id", hospitalID),
			zap.Error(err),
		)
		return failedWith(failMsg, err)
	}
	if affected == 0 {
		// deleted or reassigned between the guard and the statement
		return failed(domain.KindNotFound, MsgEntryNotFound, "")
	}

	s.afterMutation(ctx, eventType, hospitalID, ct, bagID)
	if eventType != domain.EventDonationRestored && beforeErr == nil {
		s.checkShortage(ctx, before)
	}
	return succeeded()
}

func (s *DonationService) afterMutation(ctx context.Context, eventType string, hospitalID int64, ct domain.ComponentType, bagID int64) {
	s.invalidate(hospitalID, ct)

	event := domain.InventoryEvent{
		EventType:     eventType,
		HospitalID:    hospitalID,
		ComponentType: ct,
		BagID:         bagID,
		Timestamp:     s.now().Unix(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish inventory event",
			zap.String("event_type", eventType),
			zap.Int64("hospital_id", hospitalID),
			zap.Error(err),
		)
	}
}

func (s *DonationService) invalidate(hospitalID int64, ct domain.ComponentType) {
	s.inventory.Invalidate(hospitalID, ct)
	s.surplus.InvalidateAll()
}

// ApplyEvent invalidates the caches touched by a change made on another instance.
func (s *DonationService) ApplyEvent(event domain.InventoryEvent) {
	if !event.ComponentType.Valid() {
		s.inventory.InvalidateAll()
		s.surplus.InvalidateAll()
		return
	}
	s.invalidate(event.HospitalID, event.ComponentType)
}

// checkShortage notifies when the bucket that held the mutated bag has just dropped
// into critical-low.
func (s *DonationService) checkShortage(ctx context.Context, before domain.InventoryBucket) {
	after, err := s.inventory.Lookup(ctx, before.HospitalID, before.ComponentType, before.BloodType, before.Rh)
	if err != nil {
		s.logger.Warn("Failed to re-aggregate bucket after mutation", zap.Error(err))
		return
	}
	if before.Level() == domain.LevelCriticalLow || after.Level() != domain.LevelCriticalLow {
		return
	}

	notice := domain.ShortageNotice{
		HospitalID:    after.HospitalID,
		HospitalName:  s.hospitals.HospitalName(ctx, after.HospitalID),
		ComponentType: after.ComponentType,
		BloodType:     after.BloodType,
		Rh:            after.Rh,
		Count:         after.Count,
		TotalAmountMl: after.TotalAmountMl,
		Level:         after.Level(),
		DetectedAt:    s.now(),
	}
	s.logger.Warn("Bucket dropped to critical-low",
		zap.Int64("hospital_id", notice.HospitalID),
		zap.String("component_type", string(notice.ComponentType)),
		zap.String("blood_type", string(notice.BloodType)),
		zap.String("rh", string(notice.Rh)),
		zap.Int("total_amount_ml", notice.TotalAmountMl),
	)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyShortage(nctx, notice); err != nil {
			s.logger.Error("Failed to send shortage notice", zap.Error(err))
		}
	}()
}

// WaitNotices blocks until in-flight shortage notices are sent or ctx is done.
func (s *DonationService) WaitNotices(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Search lists the caller's bags; inactive ones only when the filter asks for them.
func (s *DonationService) Search(ctx context.Context, hospitalID int64, filter repository.DonationsFilter, page, size int) ([]domain.DonationRecord, int, error) {
	if !filter.ComponentType.Valid() {
		return nil, 0, domain.NewValidationError("search_donations", "invalid component type")
	}
	if page < 1 || size < 1 || page-1 > math.MaxInt/size {
		return nil, 0, domain.NewValidationError("search_donations", "page out of range")
	}
	records, total, err := s.donations.SearchDonations(ctx, hospitalID, filter, page, size)
	if err != nil {
		return nil, 0, domain.Wrap("search_donations", err)
	}
	return records, total, nil
}

// ExportAll every row matching filter, capped at maxExportRows.
func (s *DonationService) ExportAll(ctx context.Context, hospitalID int64, filter repository.DonationsFilter) ([]domain.DonationRecord, error) {
	var out []domain.DonationRecord
	for page := 1; len(out) < maxExportRows; page++ {
		records, total, err := s.Search(ctx, hospitalID, filter, page, exportPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
		if len(records) < exportPageSize || len(out) >= total {
			break
		}
	}
	if len(out) > maxExportRows {
		out = out[:maxExportRows]
	}
	return out, nil
}
