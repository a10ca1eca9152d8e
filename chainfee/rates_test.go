package chainfee

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSatPerKWeightToVByte checks the conversion from the native sat/kw unit
// to sat/vB, including the floor pin.
func TestSatPerKWeightToVByte(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		rate     SatPerKWeight
		expected SatPerVByte
	}{
		{
			name:     "floor maps to exactly one",
			rate:     FeePerKwFloor,
			expected: 1.0,
		},
		{
			name:     "500 sat/kw",
			rate:     500,
			expected: 2.0,
		},
		{
			name:     "zero rate",
			rate:     0,
			expected: 0.0,
		},
		{
			name:     "fractional result",
			rate:     400,
			expected: 1.6,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, tc.rate.FeePerVByte())
		})
	}
}

// TestRateConversions checks the conversions between the integer rate units.
func TestRateConversions(t *testing.T) {
	t.Parallel()

	// 1000 sat/kw is 4000 sat/kvB and back.
	rate := SatPerKWeight(1000)
	require.Equal(t, SatPerKVByte(4000), rate.FeePerKVByte())
	require.Equal(t, rate, rate.FeePerKVByte().FeePerKWeight())

	// 2 sat/vB is 2000 sat/kvB.
	require.Equal(t, SatPerKVByte(2000), SatPerVByte(2).FeePerKVByte())

	// A fractional sat/vB rate rounds once at the kvB boundary.
	require.Equal(t, SatPerKVByte(1600), SatPerVByte(1.6).FeePerKVByte())
}

// TestFeeForSize checks absolute fee computation from the rate units.
func TestFeeForSize(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 250, SatPerKVByte(1000).FeeForVSize(250))
	require.EqualValues(t, 181, SatPerKWeight(253).FeeForWeight(716))
}
