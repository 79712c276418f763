package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to string }{
		{StatusPending, StatusPaid},
		{StatusPending, StatusFailed},
		{StatusPaid, StatusPartiallyRefunded},
		{StatusPaid, StatusRefunded},
		{StatusPartiallyRefunded, StatusRefunded},
	}

	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	all := []string{StatusPending, StatusPaid, StatusFailed, StatusPartiallyRefunded, StatusRefunded}

	isLegal := func(from, to string) bool {
		for _, tc := range legal {
			if tc.from == from && tc.to == to {
				return true
			}
		}
		return false
	}

	for _, from := range all {
		for _, to := range all {
			if isLegal(from, to) {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be illegal", from, to)
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("UNKNOWN", StatusPaid))
	assert.False(t, CanTransition(StatusPending, "UNKNOWN"))
}

func TestStatusAfterRefund(t *testing.T) {
	assert.Equal(t, StatusPartiallyRefunded, StatusAfterRefund(10000, 2500))
	assert.Equal(t, StatusRefunded, StatusAfterRefund(10000, 10000))
	assert.Equal(t, StatusRefunded, StatusAfterRefund(10000, 12000))
}
