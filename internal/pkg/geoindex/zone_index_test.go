package geoindex

import (
	"testing"

	"github.com/dhconnelly/rtreego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowhisper/towers/internal/core/domain"
)

func loc(lat, lon float64) *domain.Location {
	return &domain.Location{Lat: lat, Lon: lon}
}

func TestZoneIndex_SkipsZonesWithoutLocation(t *testing.T) {
	idx := New([]domain.Zone{
		{ID: "a", Location: loc(43.263, -2.935)},
		{ID: "b"},
	})
	assert.Equal(t, 1, idx.Len())
}

func TestZoneIndex_Candidates(t *testing.T) {
	center := domain.Location{Lat: 43.263, Lon: -2.935}
	idx := New([]domain.Zone{
		{ID: "near", Location: loc(43.264, -2.934)},
		{ID: "far", Location: loc(40.4168, -3.7038)},
	})

	got := idx.Candidates(center, 1000)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)

	assert.Empty(t, idx.Candidates(center, 0))
	assert.Empty(t, idx.Candidates(center, -5))
}

func TestZoneIndex_BoundsAreRectPointers(t *testing.T) {
	var item rtreego.Spatial = &zoneItem{zone: domain.Zone{ID: "a"}, rect: rtreego.Point{1, 2}.ToRect(tolerance)}
	assert.NotNil(t, item.Bounds())
}

func TestZoneIndex_CandidatesAcrossAntimeridian(t *testing.T) {
	idx := New([]domain.Zone{
		{ID: "east", Location: loc(0, 179.999)},
		{ID: "west", Location: loc(0, -179.997)},
		{ID: "elsewhere", Location: loc(0, 0)},
	})

	for _, center := range []domain.Location{{Lat: 0, Lon: 179.9995}, {Lat: 0, Lon: -179.9995}} {
		got := idx.Candidates(center, 1000)
		ids := make([]string, 0, len(got))
		for _, z := range got {
			ids = append(ids, z.ID)
		}
		assert.ElementsMatch(t, []string{"east", "west"}, ids, "center %v", center)
	}

	z, d, ok := idx.Nearest(domain.Location{Lat: 0, Lon: -179.9995}, 500)
	require.True(t, ok)
	assert.Equal(t, "east", z.ID)
	assert.Less(t, d, 500.0)
}

func TestZoneIndex_CandidatesNearPole(t *testing.T) {
	idx := New([]domain.Zone{
		{ID: "a", Location: loc(89.999, 10)},
		{ID: "b", Location: loc(89.999, -170)},
	})
	assert.Len(t, idx.Candidates(domain.Location{Lat: 90, Lon: 0}, 1000), 2)
}

func TestZoneIndex_Nearest(t *testing.T) {
	center := domain.Location{Lat: 0, Lon: 0}
	idx := New([]domain.Zone{
		{ID: "z400", Location: loc(0, 0.0036)}, // ~400 m
		{ID: "z200", Location: loc(0, 0.0018)}, // ~200 m
		{ID: "z900", Location: loc(0, 0.0081)}, // ~900 m
	})

	z, d, ok := idx.Nearest(center, 500)
	require.True(t, ok)
	assert.Equal(t, "z200", z.ID)
	assert.InDelta(t, 200, d, 1)

	_, _, ok = idx.Nearest(center, 100)
	assert.False(t, ok)
}

func TestZoneIndex_Empty(t *testing.T) {
	idx := New(nil)
	assert.Equal(t, 0, idx.Len())
	_, _, ok := idx.Nearest(domain.Location{}, 500)
	assert.False(t, ok)
}
