package pass

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passgate/internal/settings"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

func testPolicy() settings.Settings {
	policy := settings.Defaults()
	policy.MaxGatePassDays = 7
	policy.MaxPendingPasses = 2
	policy.Timezone = "UTC"
	return policy
}

func newTestValidator(store *InMemoryStore, now time.Time) *Validator {
	v := NewValidator(store)
	v.timeNow = func() time.Time { return now }
	return v
}

func TestValidatorDateSanity(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	v := newTestValidator(NewInMemoryStore(), now)
	resident := id.NewUserID()

	err := v.Validate(context.Background(), resident,
		now.Add(48*time.Hour), now.Add(24*time.Hour), testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start date must be before")

	// Start on yesterday's calendar day.
	err = v.Validate(context.Background(), resident,
		now.Add(-24*time.Hour), now.Add(24*time.Hour), testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be in the past")

	// Starting earlier today is fine; only earlier calendar days are rejected.
	err = v.Validate(context.Background(), resident,
		now.Add(-2*time.Hour), now.Add(24*time.Hour), testPolicy())
	assert.NoError(t, err)
}

func TestValidatorMaxDuration(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	v := newTestValidator(NewInMemoryStore(), now)

	err := v.Validate(context.Background(), id.NewUserID(),
		now.Add(time.Hour), now.Add(time.Hour).Add(8*24*time.Hour), testPolicy())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "maximum of 7 days")
}

func TestValidatorMaxPending(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	v := newTestValidator(store, now)
	resident := id.NewUserID()

	for i := 0; i < 2; i++ {
		offset := time.Duration(10*(i+1)) * 24 * time.Hour
		require.NoError(t, store.Create(context.Background(), &GatePass{
			ID:         id.NewPassID(),
			ResidentID: resident,
			Status:     StatusPendingSupervisor,
			FromDate:   now.Add(offset),
			ToDate:     now.Add(offset + 24*time.Hour),
			CreatedAt:  now,
		}))
	}

	err := v.Validate(context.Background(), resident,
		now.Add(time.Hour), now.Add(25*time.Hour), testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending pass request")
}

func TestValidatorOverlap(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	v := newTestValidator(store, now)
	resident := id.NewUserID()

	require.NoError(t, store.Create(context.Background(), &GatePass{
		ID:         id.NewPassID(),
		ResidentID: resident,
		Status:     StatusApproved,
		FromDate:   now.Add(24 * time.Hour),
		ToDate:     now.Add(72 * time.Hour),
		CreatedAt:  now,
	}))

	err := v.Validate(context.Background(), resident,
		now.Add(48*time.Hour), now.Add(96*time.Hour), testPolicy())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlapping")

	// Half-open intervals: starting exactly at the existing ToDate is legal.
	err = v.Validate(context.Background(), resident,
		now.Add(72*time.Hour), now.Add(96*time.Hour), testPolicy())
	assert.NoError(t, err)

	// A rejected pass does not block new requests.
	other := id.NewUserID()
	require.NoError(t, store.Create(context.Background(), &GatePass{
		ID:         id.NewPassID(),
		ResidentID: other,
		Status:     StatusRejected,
		FromDate:   now.Add(24 * time.Hour),
		ToDate:     now.Add(72 * time.Hour),
		CreatedAt:  now,
	}))
	err = v.Validate(context.Background(), other,
		now.Add(24*time.Hour), now.Add(48*time.Hour), testPolicy())
	assert.NoError(t, err)
}
