package geospatial

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for every distance in the service.
const EarthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two points.
// Coordinates are not validated; out-of-range input yields a meaningless but finite result.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// FormatDistance renders a distance as a "... away" phrase: whole meters below
// one kilometer, kilometers with one decimal otherwise.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm away", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm away", meters/1000)
}

// FormatCoordinates renders a coordinate pair with three decimals, e.g. "12.972, 77.595".
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.3f, %.3f", lat, lon)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
