package domain

import "github.com/geowhisper/towers/internal/pkg/geospatial"

// Location represents a geographic coordinate (WGS 84), in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceTo returns the great-circle distance to o in meters.
func (l Location) DistanceTo(o Location) float64 {
	return geospatial.Haversine(l.Lat, l.Lon, o.Lat, o.Lon)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsAround returns the box enclosing a circle of radiusMeters around center.
func BoundsAround(center Location, radiusMeters float64) Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(center.Lat, center.Lon, radiusMeters)
	return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

// Split normalizes b to boxes with longitudes in [-180, 180]. A box crossing
// the antimeridian becomes two. A box reaching a pole or spanning every
// longitude becomes one full-width band.
func (b Bounds) Split() []Bounds {
	if b.MinLat <= -90 || b.MaxLat >= 90 || b.MaxLon-b.MinLon >= 360 {
		return []Bounds{{MinLat: max(b.MinLat, -90), MinLon: -180, MaxLat: min(b.MaxLat, 90), MaxLon: 180}}
	}
	switch {
	case b.MinLon < -180:
		return []Bounds{
			{MinLat: b.MinLat, MinLon: -180, MaxLat: b.MaxLat, MaxLon: b.MaxLon},
			{MinLat: b.MinLat, MinLon: b.MinLon + 360, MaxLat: b.MaxLat, MaxLon: 180},
		}
	case b.MaxLon > 180:
		return []Bounds{
			{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: 180},
			{MinLat: b.MinLat, MinLon: -180, MaxLat: b.MaxLat, MaxLon: b.MaxLon - 360},
		}
	}
	return []Bounds{b}
}

// Located is anything that can be ranked by distance.
type Located interface {
	EntityID() string
	// Position reports the entity's location; ok is false when it has none.
	Position() (loc Location, ok bool)
}

// Ranked pairs an entity with its distance from a query center.
type Ranked[T any] struct {
	Item     T       `json:"item"`
	Distance float64 `json:"distance"`
}
