package usecases

import (
	"cmp"
	"iter"
	"math"
	"slices"

	"github.com/geowhisper/towers/internal/core/domain"
)

// Activity thresholds and score weights for hot zones.
const (
	veryHotThreshold = 100
	extremeThreshold = 200

	scoreCountCap    = 50.0
	scoreRecentCap   = 30.0
	scoreUsersCap    = 20.0
	scoreCountScale  = 200.0
	scoreRecentScale = 20.0
	scoreUsersScale  = 30.0
)

// WithinRadius yields the entities at most radiusMeters from center together
// with their distance, nearest first. Ties keep input order. Entities without
// a position never match. The sequence is recomputed on every range.
func WithinRadius[T domain.Located](center domain.Location, radiusMeters float64, entities []T) iter.Seq2[T, float64] {
	return func(yield func(T, float64) bool) {
		if radiusMeters <= 0 {
			return
		}
		for _, r := range rankWithin(center, radiusMeters, entities) {
			if !yield(r.Item, r.Distance) {
				return
			}
		}
	}
}

// CollectRanked drains seq into a slice.
func CollectRanked[T any](seq iter.Seq2[T, float64]) []domain.Ranked[T] {
	out := []domain.Ranked[T]{}
	for item, d := range seq {
		out = append(out, domain.Ranked[T]{Item: item, Distance: d})
	}
	return out
}

func rankWithin[T domain.Located](center domain.Location, radiusMeters float64, entities []T) []domain.Ranked[T] {
	ranked := make([]domain.Ranked[T], 0, len(entities))
	for _, e := range entities {
		loc, ok := e.Position()
		if !ok {
			continue
		}
		d := center.DistanceTo(loc)
		if d <= radiusMeters {
			ranked = append(ranked, domain.Ranked[T]{Item: e, Distance: d})
		}
	}
	slices.SortStableFunc(ranked, func(a, b domain.Ranked[T]) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return ranked
}

// HotZones ranks the zones within radiusMeters of center by descending
// count, then ascending distance, and keeps the first topN.
func HotZones(center domain.Location, radiusMeters float64, activity []domain.ZoneActivity, topN int) []domain.HotZone {
	if topN <= 0 || radiusMeters <= 0 {
		return []domain.HotZone{}
	}

	ranked := rankWithin(center, radiusMeters, activity)
	slices.SortStableFunc(ranked, func(a, b domain.Ranked[domain.ZoneActivity]) int {
		if c := cmp.Compare(b.Item.Count, a.Item.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Distance, b.Distance)
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := make([]domain.HotZone, len(ranked))
	for i, r := range ranked {
		out[i] = domain.HotZone{
			Zone:          r.Item.Zone,
			Rank:          i + 1,
			Count:         r.Item.Count,
			UniqueUsers:   r.Item.UniqueUsers,
			Distance:      r.Distance,
			ActivityLevel: ActivityLevel(r.Item.Count),
			ActivityScore: ActivityScore(r.Item),
		}
	}
	return out
}

// ActivityLevel buckets a post count.
func ActivityLevel(count int) string {
	switch {
	case count >= extremeThreshold:
		return domain.ActivityExtreme
	case count >= veryHotThreshold:
		return domain.ActivityVeryHot
	default:
		return domain.ActivityHot
	}
}

// ActivityScore weighs total posts, last-hour posts and unique users into 0-100.
func ActivityScore(a domain.ZoneActivity) float64 {
	score := math.Min(scoreCountCap, float64(a.Count)/scoreCountScale*scoreCountCap) +
		math.Min(scoreRecentCap, float64(a.RecentCount)/scoreRecentScale*scoreRecentCap) +
		math.Min(scoreUsersCap, float64(a.UniqueUsers)/scoreUsersScale*scoreUsersCap)
	return math.Min(100, score)
}

// HotZoneStatsOf summarises a hot-zone ranking. MostActive is the zone with
// the highest activity score; earlier ranks win ties.
func HotZoneStatsOf(zones []domain.HotZone) domain.HotZoneStats {
	var st domain.HotZoneStats
	for i := range zones {
		z := &zones[i]
		st.TotalCount += z.Count
		st.TotalUniqueUsers += z.UniqueUsers
		switch z.ActivityLevel {
		case domain.ActivityExtreme:
			st.ExtremeCount++
		case domain.ActivityVeryHot:
			st.VeryHotCount++
		default:
			st.HotCount++
		}
		if st.MostActive == nil || z.ActivityScore > st.MostActive.ActivityScore {
			st.MostActive = z
		}
	}
	if st.MostActive != nil {
		ma := *st.MostActive
		st.MostActive = &ma
	}
	return st
}
