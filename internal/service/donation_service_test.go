package service

import (
	"context"
	"math"
	"testing"
	"time"

	"bloodbank/internal/domain"
	"bloodbank/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validFields() domain.DonationFields {
	return domain.DonationFields{
		DonorName:      "  Ada Byron ",
		BloodType:      domain.BloodTypeA,
		Rh:             domain.RhPositive,
		AmountMl:       450,
		ExpirationDate: domain.Day(testNow).AddDate(0, 0, 30),
	}
}

func TestVerifyOwnership(t *testing.T) {
	env := newTestEnv(t)
	bagID := env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 450)
	ctx := context.Background()

	assert.True(t, env.donations.VerifyOwnership(ctx, bagID, domain.ComponentRedBlood, 1).Success)

	res := env.donations.VerifyOwnership(ctx, bagID, domain.ComponentRedBlood, 2)
	assert.False(t, res.Success)
	assert.Equal(t, MsgNoPermission, res.Error)
	assert.Equal(t, domain.KindAuthentication, res.Kind)

	// bag ids are only unique per component table
	res = env.donations.VerifyOwnership(ctx, bagID, domain.ComponentPlasma, 1)
	assert.False(t, res.Success)
	assert.Equal(t, MsgEntryNotFound, res.Error)
	assert.Equal(t, domain.KindNotFound, res.Kind)
}

func TestMutations_RejectedForOtherHospitalLeaveStoreUnchanged(t *testing.T) {
	env := newTestEnv(t)
	bagID := env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 450)
	ctx := context.Background()
	before, err := env.store.GetDonation(ctx, domain.ComponentRedBlood, bagID)
	require.NoError(t, err)

	results := []MutationResult{
		env.donations.Update(ctx, 2, domain.ComponentRedBlood, bagID, validFields()),
		env.donations.SoftDelete(ctx, 2, domain.ComponentRedBlood, bagID),
		env.donations.Restore(ctx, 2, domain.ComponentRedBlood, bagID),
		env.donations.HardDelete(ctx, 2, domain.ComponentRedBlood, bagID),
	}
	for _, res := range results {
		assert.False(t, res.Success)
		assert.Equal(t, MsgNoPermission, res.Error)
	}

	after, err := env.store.GetDonation(ctx, domain.ComponentRedBlood, bagID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, env.events.events)
}

func TestSoftDeleteRestore_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(1, domain.ComponentPlatelets, domain.BloodTypeO, domain.RhNegative, 300)
	bagID := env.put(1, domain.ComponentPlatelets, domain.BloodTypeO, domain.RhNegative, 250)

	original := env.inventory.Aggregate(ctx, 1, domain.ComponentPlatelets)
	require.Len(t, original, 1)

	res := env.donations.SoftDelete(ctx, 1, domain.ComponentPlatelets, bagID)
	require.True(t, res.Success, res.Error)
	deleted := env.inventory.Aggregate(ctx, 1, domain.ComponentPlatelets)
	require.Len(t, deleted, 1)
	assert.Equal(t, 1, deleted[0].Count)
	assert.Equal(t, 300, deleted[0].TotalAmountMl)

	rec, err := env.store.GetDonation(ctx, domain.ComponentPlatelets, bagID)
	require.NoError(t, err)
	assert.False(t, rec.Active, "row is kept")

	res = env.donations.Restore(ctx, 1, domain.ComponentPlatelets, bagID)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, original, env.inventory.Aggregate(ctx, 1, domain.ComponentPlatelets))

	require.Len(t, env.events.events, 2)
	assert.Equal(t, domain.EventDonationSoftDeleted, env.events.events[0].EventType)
	assert.Equal(t, domain.EventDonationRestored, env.events.events[1].EventType)
	assert.Equal(t, bagID, env.events.events[1].BagID)
}

func TestSearch_HidesInactiveByDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 450)
	bagID := env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 300)
	require.True(t, env.donations.SoftDelete(ctx, 1, domain.ComponentRedBlood, bagID).Success)

	_, total, err := env.donations.Search(ctx, 1, repository.DonationsFilter{ComponentType: domain.ComponentRedBlood}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	records, total, err := env.donations.Search(ctx, 1, repository.DonationsFilter{ComponentType: domain.ComponentRedBlood, OnlyInactive: true}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, bagID, records[0].BagID)

	_, _, err = env.donations.Search(ctx, 1, repository.DonationsFilter{}, 1, 20)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestAdd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.donations.Add(ctx, 1, domain.ComponentRedBlood, validFields())
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Donation)
	assert.Equal(t, "Ada Byron", res.Donation.DonorName)

	buckets := env.inventory.Aggregate(ctx, 1, domain.ComponentRedBlood)
	require.Len(t, buckets, 1)
	assert.Equal(t, 450, buckets[0].TotalAmountMl)
	require.Len(t, env.events.events, 1)
	assert.Equal(t, domain.EventDonationAdded, env.events.events[0].EventType)

	f := validFields()
	f.AmountMl = 50
	res = env.donations.Add(ctx, 1, domain.ComponentRedBlood, f)
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindValidation, res.Kind)
	assert.Contains(t, res.Error, "amount")

	f = validFields()
	f.Rh = domain.RhNone
	res = env.donations.Add(ctx, 1, domain.ComponentPlatelets, f)
	assert.False(t, res.Success)

	res = env.donations.Add(ctx, 1, domain.ComponentPlasma, f)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.RhNone, res.Donation.Rh)
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bagID := env.put(1, domain.ComponentRedBlood, domain.BloodTypeO, domain.RhNegative, 300)

	f := validFields()
	f.BloodType = domain.BloodTypeB
	res := env.donations.Update(ctx, 1, domain.ComponentRedBlood, bagID, f)
	require.True(t, res.Success, res.Error)

	rec, err := env.store.GetDonation(ctx, domain.ComponentRedBlood, bagID)
	require.NoError(t, err)
	assert.Equal(t, domain.BloodTypeB, rec.BloodType)
	assert.Equal(t, "Ada Byron", rec.DonorName)
	assert.Equal(t, int64(1), rec.HospitalID)

	res = env.donations.Update(ctx, 1, domain.ComponentRedBlood, 999, f)
	assert.Equal(t, MsgEntryNotFound, res.Error)
}

func TestShortageNoticeOnTransitionToCriticalLow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.put(1, domain.ComponentRedBlood, domain.BloodTypeO, domain.RhNegative, 300)
	second := env.put(1, domain.ComponentRedBlood, domain.BloodTypeO, domain.RhNegative, 300)

	require.True(t, env.donations.SoftDelete(ctx, 1, domain.ComponentRedBlood, first).Success)
	require.NoError(t, env.donations.WaitNotices(ctx))
	require.Len(t, env.notifier.shortages, 1)
	n := env.notifier.shortages[0]
	assert.Equal(t, int64(1), n.HospitalID)
	assert.Equal(t, "Central", n.HospitalName)
	assert.Equal(t, domain.BloodTypeO, n.BloodType)
	assert.Equal(t, domain.RhNegative, n.Rh)
	assert.Equal(t, 300, n.TotalAmountMl)
	assert.Equal(t, domain.LevelCriticalLow, n.Level)

	// already critical: no repeat
	require.True(t, env.donations.HardDelete(ctx, 1, domain.ComponentRedBlood, second).Success)
	require.NoError(t, env.donations.WaitNotices(ctx))
	assert.Len(t, env.notifier.shortages, 1)
}

// blockingNotifier holds every shortage notice until release is closed.
type blockingNotifier struct {
	recordingNotifier
	release chan struct{}
}

func (b *blockingNotifier) NotifyShortage(ctx context.Context, n domain.ShortageNotice) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.recordingNotifier.NotifyShortage(ctx, n)
}

func TestSlowNotifierDoesNotDelayMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	notifier := &blockingNotifier{release: make(chan struct{})}
	donations := NewDonationService(env.store, env.inventory, env.surplus, env.hospitals, env.events, notifier, env.clock.Now, zap.NewNop())
	bag := env.put(1, domain.ComponentPlatelets, domain.BloodTypeAB, domain.RhPositive, 400)
	env.put(1, domain.ComponentPlatelets, domain.BloodTypeAB, domain.RhPositive, 300)

	done := make(chan MutationResult, 1)
	go func() { done <- donations.SoftDelete(ctx, 1, domain.ComponentPlatelets, bag) }()

	select {
	case res := <-done:
		require.True(t, res.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("soft delete waited on the notifier")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, donations.WaitNotices(waitCtx), context.DeadlineExceeded)

	close(notifier.release)
	require.NoError(t, donations.WaitNotices(ctx))
	require.Len(t, notifier.shortages, 1)
	assert.Equal(t, 300, notifier.shortages[0].TotalAmountMl)
}

func TestMutationInvalidatesOtherHospitalsAlerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(2, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 400)
	big := env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 6000)

	require.Len(t, env.surplus.FindSurplusAlerts(ctx, 2), 1)
	require.Equal(t, domain.LevelCounts{Surplus: 1}, env.surplus.Summarize(ctx, 1).RedBlood)

	require.True(t, env.donations.SoftDelete(ctx, 1, domain.ComponentRedBlood, big).Success)
	assert.Empty(t, env.surplus.FindSurplusAlerts(ctx, 2))
	assert.Equal(t, domain.LevelCounts{}, env.surplus.Summarize(ctx, 1).RedBlood)
}

func TestApplyEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(1, domain.ComponentPlasma, domain.BloodTypeA, domain.RhNone, 200)
	require.Len(t, env.inventory.Aggregate(ctx, 1, domain.ComponentPlasma), 1)

	// another instance adds stock
	env.put(1, domain.ComponentPlasma, domain.BloodTypeB, domain.RhNone, 200)
	assert.Len(t, env.inventory.Aggregate(ctx, 1, domain.ComponentPlasma), 1)

	env.donations.ApplyEvent(domain.InventoryEvent{
		EventType: domain.EventDonationAdded, HospitalID: 1, ComponentType: domain.ComponentPlasma,
	})
	assert.Len(t, env.inventory.Aggregate(ctx, 1, domain.ComponentPlasma), 2)
}

func TestExportAll(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < exportPageSize+3; i++ {
		env.put(1, domain.ComponentPlatelets, domain.BloodTypeA, domain.RhPositive, 200)
	}
	records, err := env.donations.ExportAll(context.Background(), 1, repository.DonationsFilter{ComponentType: domain.ComponentPlatelets})
	require.NoError(t, err)
	assert.Len(t, records, exportPageSize+3)
}

func TestSearchRejectsPageOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 450)
	filter := repository.DonationsFilter{ComponentType: domain.ComponentRedBlood}

	_, _, err := env.donations.Search(context.Background(), 1, filter, math.MaxInt/20+2, 20)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	records, total, err := env.donations.Search(context.Background(), 1, filter, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, records, 1)
}
