package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/pkg/geoindex"
	"github.com/geowhisper/towers/internal/pkg/metrics"
)

const zonesCacheKey = "zones:all"

// ProximityConfig holds the default radii and limits of proximity queries.
type ProximityConfig struct {
	NearbyPostsRadius float64
	NearbyPostsLimit  int
	MaxCandidates     int
	NearbyZonesRadius float64
	MaxPostsPerZone   int
	HotZoneCount      int
	HotZoneRadius     float64
	HotZoneMinCount   int
	RecentWindowHours int
	CurrentZoneRadius float64
	ZonesCacheTTL     time.Duration
}

// DefaultProximityConfig returns the stock defaults.
func DefaultProximityConfig() ProximityConfig {
	return ProximityConfig{
		NearbyPostsRadius: 500,
		NearbyPostsLimit:  20,
		MaxCandidates:     1000,
		NearbyZonesRadius: 2000,
		MaxPostsPerZone:   200,
		HotZoneCount:      5,
		HotZoneRadius:     2000,
		HotZoneMinCount:   0,
		RecentWindowHours: 1,
		CurrentZoneRadius: 500,
		ZonesCacheTTL:     2 * time.Minute,
	}
}

type zoneSnapshot struct {
	zones    []domain.Zone
	index    *geoindex.ZoneIndex
	loadedAt time.Time
}

// ProximityService answers radius and ranking queries over zones and posts.
// A zero radius, limit or count selects the configured default; a negative
// radius yields an empty result.
type ProximityService struct {
	zones ports.ZoneRepository
	posts ports.PostRepository
	cache ports.CacheService
	cfg   ProximityConfig

	mu       sync.RWMutex
	snapshot *zoneSnapshot
	now      func() time.Time
}

// NewProximityService creates a new ProximityService. cache may be nil.
func NewProximityService(zones ports.ZoneRepository, posts ports.PostRepository, cache ports.CacheService, cfg ProximityConfig) *ProximityService {
	return &ProximityService{
		zones: zones,
		posts: posts,
		cache: cache,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Config returns the defaults the service applies.
func (s *ProximityService) Config() ProximityConfig {
	return s.cfg
}

// NearbyPosts returns up to limit posts within radius of center, nearest
// first. limit is capped at MaxPostsPerZone.
func (s *ProximityService) NearbyPosts(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Ranked[domain.Post], error) {
	radius = orDefault(radius, s.cfg.NearbyPostsRadius)
	switch {
	case limit <= 0:
		limit = s.cfg.NearbyPostsLimit
	case limit > s.cfg.MaxPostsPerZone:
		limit = s.cfg.MaxPostsPerZone
	}
	if radius < 0 {
		return []domain.Ranked[domain.Post]{}, nil
	}

	posts, err := s.posts.ListNear(ctx, center, radius, s.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("list posts near: %w", err)
	}

	out := make([]domain.Ranked[domain.Post], 0, limit)
	for p, d := range WithinRadius(center, radius, posts) {
		if len(out) == limit {
			break
		}
		out = append(out, domain.Ranked[domain.Post]{Item: p, Distance: d})
	}
	return out, nil
}

// ZonePosts returns the newest posts of a zone, capped at MaxPostsPerZone.
func (s *ProximityService) ZonePosts(ctx context.Context, zoneID string, limit int) ([]domain.Post, error) {
	if limit <= 0 || limit > s.cfg.MaxPostsPerZone {
		limit = s.cfg.MaxPostsPerZone
	}
	posts, err := s.posts.ListByZone(ctx, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("list zone posts: %w", err)
	}
	return posts, nil
}

// NearbyZones returns the zones within radius of center, nearest first.
func (s *ProximityService) NearbyZones(ctx context.Context, center domain.Location, radius float64) ([]domain.Ranked[domain.Zone], error) {
	radius = orDefault(radius, s.cfg.NearbyZonesRadius)
	if radius < 0 {
		return []domain.Ranked[domain.Zone]{}, nil
	}

	snap, err := s.loadZones(ctx)
	if err != nil {
		return nil, err
	}
	return CollectRanked(WithinRadius(center, radius, snap.index.Candidates(center, radius))), nil
}

// CurrentZone returns the zone the user is standing in: the nearest zone
// within CurrentZoneRadius.
func (s *ProximityService) CurrentZone(ctx context.Context, center domain.Location) (*domain.Ranked[domain.Zone], error) {
	snap, err := s.loadZones(ctx)
	if err != nil {
		return nil, err
	}
	z, d, ok := snap.index.Nearest(center, s.cfg.CurrentZoneRadius)
	if !ok {
		return nil, nil
	}
	return &domain.Ranked[domain.Zone]{Item: z, Distance: d}, nil
}

// Zone looks a zone up by id, preferring the cached snapshot.
func (s *ProximityService) Zone(ctx context.Context, id string) (*domain.Zone, error) {
	if snap, err := s.loadZones(ctx); err == nil {
		for i := range snap.zones {
			if snap.zones[i].ID == id {
				z := snap.zones[i]
				return &z, nil
			}
		}
	}
	z, err := s.zones.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get zone: %w", err)
	}
	return z, nil
}

// HotZones ranks the busiest zones around center. Zones below minCount posts
// are left out.
func (s *ProximityService) HotZones(ctx context.Context, center domain.Location, radius float64, topN, minCount int) (*domain.HotZoneReport, error) {
	radius = orDefault(radius, s.cfg.HotZoneRadius)
	if topN == 0 {
		topN = s.cfg.HotZoneCount
	}
	if minCount <= 0 {
		minCount = s.cfg.HotZoneMinCount
	}

	var activity []domain.ZoneActivity
	if radius > 0 {
		var err error
		activity, err = s.zones.ListActivity(ctx, center, radius, s.cfg.RecentWindowHours)
		if err != nil {
			return nil, fmt.Errorf("list zone activity: %w", err)
		}
	}
	metrics.HotZoneQueries.Observe(float64(len(activity)))

	if minCount > 0 {
		kept := make([]domain.ZoneActivity, 0, len(activity))
		for _, a := range activity {
			if a.Count >= minCount {
				kept = append(kept, a)
			}
		}
		activity = kept
	}

	zones := HotZones(center, radius, activity, topN)
	return &domain.HotZoneReport{
		Zones:      zones,
		Stats:      HotZoneStatsOf(zones),
		SearchArea: SearchArea(center, radius, len(activity)),
		Analyzed:   len(activity),
	}, nil
}

// SearchArea describes a hot-zone query for display.
func SearchArea(center domain.Location, radius float64, analyzed int) string {
	return fmt.Sprintf("Within %.1f km of (%.4f, %.4f) - %d zones analyzed",
		radius/1000, center.Lat, center.Lon, analyzed)
}

// InvalidateZones drops the zone snapshot so the next query reloads it.
func (s *ProximityService) InvalidateZones(ctx context.Context) {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	if s.cache != nil {
		_ = s.cache.Delete(ctx, zonesCacheKey)
	}
}

func (s *ProximityService) loadZones(ctx context.Context) (*zoneSnapshot, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil && s.now().Sub(snap.loadedAt) < s.cfg.ZonesCacheTTL {
		return snap, nil
	}

	zones, err := s.fetchZones(ctx)
	if err != nil {
		return nil, err
	}

	snap = &zoneSnapshot{zones: zones, index: geoindex.New(zones), loadedAt: s.now()}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *ProximityService) fetchZones(ctx context.Context) ([]domain.Zone, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, zonesCacheKey); err == nil {
			var zones []domain.Zone
			if err := json.Unmarshal(data, &zones); err == nil {
				metrics.CacheHits.WithLabelValues("zones").Inc()
				return zones, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("zones").Inc()
	}

	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(zones); err == nil {
			_ = s.cache.Set(ctx, zonesCacheKey, data, int(s.cfg.ZonesCacheTTL.Seconds()))
		}
	}
	return zones, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
