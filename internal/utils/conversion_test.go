package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFixedPoint(t *testing.T) {
	v, err := NormalizeFixedPoint(sdkmath.NewIntWithDecimal(15, 17), 18)
	require.NoError(t, err)
	require.InDelta(t, 1.5, v, 1e-12)

	v, err = NormalizeFixedPoint(sdkmath.NewInt(500000), 0)
	require.NoError(t, err)
	require.Equal(t, 500000.0, v)

	v, err = NormalizeFixedPoint(sdkmath.ZeroInt(), 18)
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestNormalizeFixedPointRejectsInvalidInput(t *testing.T) {
	_, err := NormalizeFixedPoint(sdkmath.NewInt(1), -1)
	require.ErrorIs(t, err, ErrInvalidExponent)

	_, err = NormalizeFixedPoint(sdkmath.NewInt(1), 19)
	require.ErrorIs(t, err, ErrInvalidExponent)

	_, err = NormalizeFixedPoint(sdkmath.Int{}, 18)
	require.ErrorIs(t, err, ErrAmountNil)

	_, err = NormalizeFixedPoint(sdkmath.NewInt(-1), 18)
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestDenormalizeToFixedPointRoundTrip(t *testing.T) {
	fixed, err := DenormalizeToFixedPoint(1.25, 6)
	require.NoError(t, err)
	require.True(t, fixed.Equal(sdkmath.NewInt(1250000)))

	back, err := NormalizeFixedPoint(fixed, 6)
	require.NoError(t, err)
	require.InDelta(t, 1.25, back, 1e-12)

	zero, err := DenormalizeToFixedPoint(0, 18)
	require.NoError(t, err)
	require.True(t, zero.IsZero())
}

func TestRound2(t *testing.T) {
	require.Equal(t, 1.23, Round2(1.2345))
	require.Equal(t, 125.0, Round2(125.0))
	require.Equal(t, -1.23, Round2(-1.2345))
	require.Equal(t, 1.24, Round2(1.2351))
}
