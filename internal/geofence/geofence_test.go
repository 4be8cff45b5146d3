package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "passgate/pkg/domain-errors"
)

func TestEvaluate_SamePoint(t *testing.T) {
	res, err := Evaluate(12.9716, 77.5946, 12.9716, 77.5946, 50)
	require.NoError(t, err)
	assert.True(t, res.InsideFence)
	assert.Equal(t, 0, res.DistanceMeters)
}

func TestEvaluate_KnownDistance(t *testing.T) {
	// Roughly 111m per 0.001 degree of latitude at the equator.
	res, err := Evaluate(0, 0, 0.001, 0, 200)
	require.NoError(t, err)
	assert.True(t, res.InsideFence)
	assert.InDelta(t, 111, res.DistanceMeters, 2)

	res, err = Evaluate(0, 0, 0.001, 0, 100)
	require.NoError(t, err)
	assert.False(t, res.InsideFence)
}

func TestEvaluate_BoundaryIsInside(t *testing.T) {
	res, err := Evaluate(0, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.True(t, res.InsideFence)
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{"valid", 45.0, 90.0, false},
		{"lat upper bound", 90.0, 0, false},
		{"lat too high", 90.1, 0, true},
		{"lat too low", -90.1, 0, true},
		{"lon upper bound", 0, 180.0, false},
		{"lon too high", 0, 180.1, true},
		{"lon too low", 0, -180.1, true},
		{"NaN lat", math.NaN(), 0, true},
		{"Inf lon", 0, math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluate_RejectsBadRadius(t *testing.T) {
	_, err := Evaluate(0, 0, 0, 0, -1)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
