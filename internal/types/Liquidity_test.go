package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDepthAtClampsDownToNearestBucket(t *testing.T) {
	data := LiquidityData{
		DepthBySlippageBps: map[int]float64{50: 10, 300: 40, 700: 100},
		AveragePrice:       2500,
	}

	require.Equal(t, 100.0, data.DepthAt(700))
	require.Equal(t, 40.0, data.DepthAt(699))
	require.Equal(t, 40.0, data.DepthAt(300))
	require.Equal(t, 10.0, data.DepthAt(299))
	require.Equal(t, 100.0, data.DepthAt(2000), "targets above every bucket use the deepest one")
}

func TestDepthAtBelowEveryBucketIsZero(t *testing.T) {
	data := LiquidityData{DepthBySlippageBps: map[int]float64{300: 40}}

	require.Zero(t, data.DepthAt(299))
	require.Zero(t, data.DepthAt(0))
	require.Zero(t, data.DepthAt(-100))
	require.Zero(t, LiquidityData{}.DepthAt(700))
}
