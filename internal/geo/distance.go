package geo

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
	EarthRadiusMeters = 6371000.0

	degToRad = math.Pi / 180
)

// Distance returns the great-circle distance between two points in meters.
//
// The haversine term is clamped to [0, 1] before the square root. Rounding
// can push it a hair past 1 for antipodal points, and math.Asin of anything
// above 1 is NaN.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lng2 - lng1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	a = math.Max(0, math.Min(1, a))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// DistanceKm is Distance expressed in kilometers.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	return Distance(lat1, lng1, lat2, lng2) / 1000
}
