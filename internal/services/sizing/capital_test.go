package sizing

import (
	"testing"

	"TradeGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeExamples(t *testing.T) {
	n, err := Size(10000, 1000, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = Size(4500, 1000, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSizeClampsToBounds(t *testing.T) {
	cases := []struct {
		name    string
		capital float64
		want    int
	}{
		{"zero capital", 0, 2},
		{"below min", 1500, 2},
		{"in range", 5999, 5},
		{"above max", 1e9, 8},
		{"negative capital", -500, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := Size(tc.capital, 1000, 2, 8)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestSizeAlwaysWithinBounds(t *testing.T) {
	for capital := 0.0; capital <= 50000; capital += 137 {
		n, err := Size(capital, 750, 1, 20)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 20)
	}
}

func TestSizeRejectsInvalidConfiguration(t *testing.T) {
	_, err := Size(1000, 0, 1, 10)
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))

	_, err = Size(1000, -5, 1, 10)
	assert.True(t, models.IsConfigurationError(err))

	_, err = Size(1000, 100, 5, 2)
	assert.True(t, models.IsConfigurationError(err))
}

func TestReducedUnits(t *testing.T) {
	assert.Equal(t, 5, ReducedUnits(10, 0.5))
	assert.Equal(t, 1, ReducedUnits(1, 0.5))
	assert.Equal(t, 2, ReducedUnits(5, 0.5))
	assert.Equal(t, 0, ReducedUnits(0, 0.5))
}
