package service

import (
	"context"
	"testing"
	"time"

	"bloodbank/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpirySweep(t *testing.T) {
	env := newTestEnv(t)
	env.put(1, domain.ComponentRedBlood, domain.BloodTypeA, domain.RhPositive, 450) // +10 days, outside window
	for _, days := range []int{1, 7} {
		env.store.PutDonation(domain.DonationRecord{
			ComponentType: domain.ComponentRedBlood, BloodType: domain.BloodTypeO, Rh: domain.RhPositive,
			AmountMl: 400, ExpirationDate: domain.Day(testNow).AddDate(0, 0, days), HospitalID: 3, Active: true,
		})
	}
	env.store.PutDonation(domain.DonationRecord{
		ComponentType: domain.ComponentRedBlood, BloodType: domain.BloodTypeO, Rh: domain.RhPositive,
		AmountMl: 400, ExpirationDate: domain.Day(testNow).AddDate(0, 0, 2), HospitalID: 3, Active: false,
	})

	s := NewExpiryScheduler("0 6 * * *", 7, time.UTC, env.inventory, env.notifier, zap.NewNop())
	notices, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, int64(3), notices[0].HospitalID)
	assert.Equal(t, "East Valley", notices[0].HospitalName)
	assert.Equal(t, 2, notices[0].Count)
	assert.Equal(t, 800, notices[0].TotalAmountMl)
	assert.Equal(t, 7, notices[0].WithinDays)
	assert.Len(t, env.notifier.expiries, 1)
}

func TestExpiryScheduler_InvalidCronExpression(t *testing.T) {
	env := newTestEnv(t)
	s := NewExpiryScheduler("every morning", 7, nil, env.inventory, nil, nil)
	assert.Error(t, s.Start())
}

func TestExpiryScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	s := NewExpiryScheduler("0 6 * * *", 7, time.UTC, env.inventory, nil, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
}
