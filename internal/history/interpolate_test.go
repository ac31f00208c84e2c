package history

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	curve := h([2]float64{50, 5}, [2]float64{75, 10}, [2]float64{100, 20})

	tests := []struct {
		name  string
		light float64
		want  int
	}{
		{"below dimmest clamps", 3, 50},
		{"negative light clamps", -10, 50},
		{"exactly dimmest", 5, 50},
		{"above brightest clamps", 25, 100},
		{"exactly brightest", 20, 100},
		{"half way rounds up", 7.5, 63},
		{"exact middle entry", 10, 75},
		{"second segment half way", 15, 88},
		{"second segment quarter", 12.5, 81},
		{"just above lower", 5.2, 51},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Interpolate(curve, tc.light)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInterpolateSingleEntry(t *testing.T) {
	curve := h([2]float64{100, 0})
	for _, light := range []float64{-1, 0, 1, 1000} {
		got, err := Interpolate(curve, light)
		require.NoError(t, err)
		assert.Equal(t, 100, got)
	}
}

func TestInterpolateEmpty(t *testing.T) {
	_, err := Interpolate(History{}, 3)
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestInterpolateInvalidLight(t *testing.T) {
	curve := h([2]float64{50, 5}, [2]float64{75, 10})
	for _, light := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Interpolate(curve, light)
		assert.ErrorIs(t, err, ErrInvalidLight)
	}
}

func TestInterpolateDegenerate(t *testing.T) {
	curve := History{
		{Brightness: 50, Light: math.NaN()},
		{Brightness: 75, Light: 10},
	}
	_, err := Interpolate(curve, 7)
	assert.ErrorIs(t, err, ErrDegenerateHistory)
}

func TestInterpolateEqualLightsDoNotPanic(t *testing.T) {
	curve := h([2]float64{50, 5}, [2]float64{60, 5}, [2]float64{70, 5})

	got, err := Interpolate(curve, 5)
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	got, err = Interpolate(curve, 6)
	require.NoError(t, err)
	assert.Equal(t, 70, got)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 63, roundHalfUp(62.5))
	assert.Equal(t, 62, roundHalfUp(62.49))
	assert.Equal(t, 1, roundHalfUp(0.5))
	assert.Equal(t, 0, roundHalfUp(0.4999))
}
