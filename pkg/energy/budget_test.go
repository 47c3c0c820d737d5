package energy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/energy"
)

func TestChargeAndRemaining(t *testing.T) {
	b := energy.Open(100)
	require.NoError(t, b.Charge(30))
	require.NoError(t, b.Charge(70))
	assert.Equal(t, int64(0), b.Remaining())
	assert.Equal(t, int64(100), b.Spent())
}

func TestChargeExceedingCapIsRefusedInFull(t *testing.T) {
	b := energy.Open(10)
	require.NoError(t, b.Charge(9))

	err := b.Charge(2)
	assert.ErrorIs(t, err, energy.ErrBudgetExceeded)
	// Failed charge must not partially spend.
	assert.Equal(t, int64(9), b.Spent())

	// Exact fit still allowed.
	assert.NoError(t, b.Charge(1))
}

func TestNegativeChargeRefused(t *testing.T) {
	b := energy.Open(10)
	assert.Error(t, b.Charge(-1))
	assert.Equal(t, int64(0), b.Spent())
}

func TestCloseFinalizes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := energy.OpenWithClock(50, func() time.Time { return now })
	require.NoError(t, b.Charge(20))

	r := b.Close()
	assert.Equal(t, int64(50), r.MaxTokens)
	assert.Equal(t, int64(20), r.SpentTokens)
	assert.NotEmpty(t, r.ID)

	// Charging after close is refused.
	assert.ErrorIs(t, b.Charge(1), energy.ErrBudgetClosed)

	// Close is idempotent on totals.
	r2 := b.Close()
	assert.Equal(t, r.SpentTokens, r2.SpentTokens)
}
