package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/domain"
	"bloodbank/internal/repository"

	"go.uber.org/zap"
)

var testNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	shortages []domain.ShortageNotice
	expiries  []domain.ExpiryNotice
}

func (r *recordingNotifier) NotifyShortage(_ context.Context, n domain.ShortageNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortages = append(r.shortages, n)
	return nil
}

func (r *recordingNotifier) NotifyExpiry(_ context.Context, n domain.ExpiryNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiries = append(r.expiries, n)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.InventoryEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e domain.InventoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// flakyInventory wraps a repository and fails selected reads.
type flakyInventory struct {
	repository.InventoryRepository
	failOwn       bool
	failBloodType domain.BloodType
	otherCalls    int
	activeCalls   int
}

func (f *flakyInventory) FetchActiveBuckets(ctx context.Context, hospitalID int64, ct domain.ComponentType, today time.Time) ([]domain.InventoryBucket, error) {
	f.activeCalls++
	if f.failOwn {
		return nil, errors.New("connection refused")
	}
	return f.InventoryRepository.FetchActiveBuckets(ctx, hospitalID, ct, today)
}

func (f *flakyInventory) FetchOtherHospitalBuckets(ctx context.Context, q repository.OtherBucketsQuery) ([]domain.HospitalBucket, error) {
	f.otherCalls++
	if f.failBloodType != "" && q.BloodType == f.failBloodType {
		return nil, errors.New("statement timeout")
	}
	return f.InventoryRepository.FetchOtherHospitalBuckets(ctx, q)
}

type testEnv struct {
	store     *repository.MemoryStore
	repo      *flakyInventory
	clock     *fakeClock
	inventory *InventoryService
	surplus   *SurplusService
	hospitals *HospitalService
	donations *DonationService
	notifier  *recordingNotifier
	events    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := repository.NewMemoryStore()
	st.UpsertHospital(domain.Hospital{HospitalID: 1, HospitalName: "Central"})
	st.UpsertHospital(domain.Hospital{HospitalID: 2, HospitalName: "North General"})
	st.UpsertHospital(domain.Hospital{HospitalID: 3, HospitalName: "East Valley"})
	st.UpsertHospital(domain.Hospital{HospitalID: 4, HospitalName: "West Park"})

	clk := &fakeClock{now: testNow}
	logger := zap.NewNop()
	repo := &flakyInventory{InventoryRepository: st}

	env := &testEnv{
		store:    st,
		repo:     repo,
		clock:    clk,
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
	}
	env.inventory = NewInventoryService(repo, 60*time.Second, clk.Now, logger)
	env.surplus = NewSurplusService(env.inventory, repo, 300*time.Second, clk.Now, logger)
	env.hospitals = NewHospitalService(st, 300*time.Second, clk.Now)
	env.donations = NewDonationService(st, env.inventory, env.surplus, env.hospitals, env.events, env.notifier, clk.Now, logger)
	return env
}

// put stores one bag expiring in ten days and returns its bag id.
func (e *testEnv) put(hospitalID int64, ct domain.ComponentType, bt domain.BloodType, rh domain.Rh, amount int) int64 {
	d := e.store.PutDonation(domain.DonationRecord{
		ComponentType:  ct,
		DonorName:      "donor",
		BloodType:      bt,
		Rh:             rh,
		AmountMl:       amount,
		ExpirationDate: domain.Day(testNow).AddDate(0, 0, 10),
		HospitalID:     hospitalID,
		Active:         true,
	})
	return d.BagID
}
