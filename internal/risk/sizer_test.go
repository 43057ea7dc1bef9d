package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSizing(t *testing.T) {
	size, err := CalculatePositionSize(100, 50000, 8, 1.0)
	require.NoError(t, err)

	// 50000/8 = 6250 per trade, 6250/100 = 62 shares
	assert.Equal(t, int64(62), size.Quantity)
	assert.InDelta(t, 6200, size.CapitalRequired, 0.001)
	assert.InDelta(t, 6250, size.PerTradeCapital, 0.001)
}

func TestDoubleMultiplierCappedAtQuarterOfCapital(t *testing.T) {
	size, err := CalculatePositionSize(100, 50000, 8, 2.0)
	require.NoError(t, err)

	// 6250*2 = 12500, equal to the 25% cap
	assert.InDelta(t, 12500, size.PerTradeCapital, 0.001)
	assert.Equal(t, int64(125), size.Quantity)
	assert.InDelta(t, 12500, size.CapitalRequired, 0.001)
}

func TestModerateMultiplierCappedAtFifthOfCapital(t *testing.T) {
	// 50000/4 = 12500, *1.5 = 18750, capped at 20% = 10000
	size, err := CalculatePositionSize(100, 50000, 4, 1.5)
	require.NoError(t, err)

	assert.InDelta(t, 10000, size.PerTradeCapital, 0.001)
	assert.Equal(t, int64(100), size.Quantity)
}

func TestMultiplierBelowOneIsNotScaled(t *testing.T) {
	a, err := CalculatePositionSize(100, 50000, 8, 0.5)
	require.NoError(t, err)
	b, err := CalculatePositionSize(100, 50000, 8, 1.0)
	require.NoError(t, err)

	assert.Equal(t, b.Quantity, a.Quantity)
}

func TestQuantityIsFloored(t *testing.T) {
	size, err := CalculatePositionSize(333, 50000, 8, 1.0)
	require.NoError(t, err)

	// 6250/333 = 18.76 -> 18
	assert.Equal(t, int64(18), size.Quantity)
	assert.InDelta(t, 5994, size.CapitalRequired, 0.001)
}

func TestInvalidInputs(t *testing.T) {
	_, err := CalculatePositionSize(100, 50000, 0, 1.0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculatePositionSize(100, 50000, -2, 1.0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculatePositionSize(0, 50000, 8, 1.0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = CalculatePositionSize(-10, 50000, 8, 1.0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
