package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeDiscount() Discount {
	now := time.Now()
	return Discount{
		ID:       "DSC-1",
		Type:     TypePercent,
		Value:    10,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
		MaxUses:  5,
		Active:   true,
	}
}

func TestRedeemable(t *testing.T) {
	now := time.Now()

	d := activeDiscount()
	assert.True(t, d.Redeemable(now))

	inactive := activeDiscount()
	inactive.Active = false
	assert.False(t, inactive.Redeemable(now))

	early := activeDiscount()
	early.StartsAt = now.Add(time.Minute)
	assert.False(t, early.Redeemable(now))

	expired := activeDiscount()
	expired.EndsAt = now.Add(-time.Minute)
	assert.False(t, expired.Redeemable(now))

	exhausted := activeDiscount()
	exhausted.UsedCount = exhausted.MaxUses
	assert.False(t, exhausted.Redeemable(now))
}

func TestAmountForPercent(t *testing.T) {
	d := activeDiscount()

	assert.Equal(t, int64(1000), d.AmountFor(10000))
	assert.Equal(t, int64(0), d.AmountFor(0))
}

func TestAmountForFixed(t *testing.T) {
	d := activeDiscount()
	d.Type = TypeFixed
	d.Value = 2500

	assert.Equal(t, int64(2500), d.AmountFor(10000))
}

func TestAmountForNeverExceedsSubtotal(t *testing.T) {
	d := activeDiscount()
	d.Type = TypeFixed
	d.Value = 99999

	assert.Equal(t, int64(500), d.AmountFor(500))
}
