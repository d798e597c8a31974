package geo

import "math"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distance.
	EarthRadiusKm = 6371.0

	// MismatchThresholdKm is the distance above which a login location is
	// flagged as mismatched against the account's last known location.
	MismatchThresholdKm = 50.0
)

// DistanceKm computes the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// IsMismatch reports whether two locations are farther apart than
// MismatchThresholdKm. The flag only annotates the UI and never blocks
// verification.
func IsMismatch(a, b Coordinates) bool {
	return DistanceKm(a, b) > MismatchThresholdKm
}
