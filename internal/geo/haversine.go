// Package geo implements the geofence distance check used to validate
// stamp collection attempts.
package geo

import "math"

// earthRadius is the mean Earth radius in metres.
const earthRadius = 6371000.0

// Distance returns the great-circle distance in metres between two
// coordinates using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Check reports whether the given position is within radius metres of the
// anchor, along with the computed distance.
func Check(lat, lng, anchorLat, anchorLng, radius float64) (bool, float64) {
	d := Distance(lat, lng, anchorLat, anchorLng)
	return d <= radius, d
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
