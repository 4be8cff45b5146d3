// Package geofence decides whether a reported position lies inside a
// circular fence around a reference coordinate. It is pure computation so the
// attendance service stays trivially testable.
package geofence

import (
	"math"

	dErrors "passgate/pkg/domain-errors"
)

// meanEarthRadiusMeters is the mean Earth radius used by the haversine formula.
const meanEarthRadiusMeters = 6371000.0

// Result is the outcome of a fence evaluation. DistanceMeters is rounded to
// the nearest meter for user-facing messages.
type Result struct {
	InsideFence    bool `json:"inside_fence"`
	DistanceMeters int  `json:"distance_meters"`
}

// ValidateCoordinates rejects non-finite or out-of-range latitude/longitude.
// Out-of-range input is a caller error, never silently clamped.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return dErrors.New(dErrors.CodeInvalidInput, "coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return dErrors.New(dErrors.CodeInvalidInput, "latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return dErrors.New(dErrors.CodeInvalidInput, "longitude must be between -180 and 180")
	}
	return nil
}

// Evaluate computes the great-circle distance between a reference point and a
// reported position and checks it against radiusMeters.
func Evaluate(refLat, refLon, lat, lon, radiusMeters float64) (Result, error) {
	if err := ValidateCoordinates(refLat, refLon); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid reference coordinates")
	}
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Result{}, err
	}
	if radiusMeters < 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "radius must be a non-negative finite number")
	}

	distance := haversine(refLat, refLon, lat, lon)
	rounded := int(math.Round(distance))
	return Result{
		InsideFence:    distance <= radiusMeters,
		DistanceMeters: rounded,
	}, nil
}

// haversine returns the great-circle distance in meters between two points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return meanEarthRadiusMeters * c
}
