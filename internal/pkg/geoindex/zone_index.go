// Package geoindex provides an R-tree over zone locations for fast radius
// pre-filtering.
package geoindex

import (
	"github.com/dhconnelly/rtreego"

	"github.com/geowhisper/towers/internal/core/domain"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

type zoneItem struct {
	zone domain.Zone
	rect *rtreego.Rect
}

func (z *zoneItem) Bounds() *rtreego.Rect {
	return z.rect
}

// ZoneIndex is an immutable snapshot of zones keyed by position. Zones
// without a location are not indexed. Safe for concurrent reads.
type ZoneIndex struct {
	tree *rtreego.Rtree
	size int
}

// New bulk-loads zones into a new index.
func New(zones []domain.Zone) *ZoneIndex {
	items := make([]rtreego.Spatial, 0, len(zones))
	for _, z := range zones {
		if z.Location == nil {
			continue
		}
		p := rtreego.Point{z.Location.Lat, z.Location.Lon}
		items = append(items, &zoneItem{zone: z, rect: p.ToRect(tolerance)})
	}
	return &ZoneIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		size: len(items),
	}
}

// Len returns the number of indexed zones.
func (x *ZoneIndex) Len() int {
	return x.size
}

// Candidates returns the zones whose location falls inside the bounding box
// of the circle around center. A box crossing the antimeridian is searched
// as two. Callers apply the exact distance filter. Order is unspecified.
func (x *ZoneIndex) Candidates(center domain.Location, radiusMeters float64) []domain.Zone {
	if radiusMeters <= 0 || x.size == 0 {
		return nil
	}

	var out []domain.Zone
	for _, b := range domain.BoundsAround(center, radiusMeters).Split() {
		rect, err := rtreego.NewRect(
			rtreego.Point{b.MinLat, b.MinLon},
			[]float64{b.MaxLat - b.MinLat, b.MaxLon - b.MinLon},
		)
		if err != nil {
			continue
		}
		for _, h := range x.tree.SearchIntersect(rect) {
			if item, ok := h.(*zoneItem); ok {
				out = append(out, item.zone)
			}
		}
	}
	return out
}

// Nearest returns the zone closest to center within maxMeters.
func (x *ZoneIndex) Nearest(center domain.Location, maxMeters float64) (domain.Zone, float64, bool) {
	var (
		best  domain.Zone
		bestD float64
		found bool
	)
	for _, z := range x.Candidates(center, maxMeters) {
		d := center.DistanceTo(*z.Location)
		if d > maxMeters {
			continue
		}
		if !found || d < bestD || (d == bestD && z.ID < best.ID) {
			best, bestD, found = z, d, true
		}
	}
	return best, bestD, found
}
