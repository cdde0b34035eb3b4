// Package geo holds the great-circle helpers shared by the fleet and station code.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// DistanceKm calculates the haversine distance in kilometres between two lat/lon points.
// Inputs are not validated.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Round4 rounds v to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// FormatLocation renders a coordinate pair the way operator messages show it,
// e.g. "34.0876 N, 74.7973 E".
func FormatLocation(lat, lon float64) string {
	return fmt.Sprintf("%.4f N, %.4f E", lat, lon)
}

// FormatLocationDeg is FormatLocation with degree markers.
func FormatLocationDeg(lat, lon float64) string {
	return fmt.Sprintf("%.4f° N, %.4f° E", lat, lon)
}
