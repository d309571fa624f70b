package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/usecases"
)

func TestProximityService_NearbyPosts(t *testing.T) {
	var gotLimit int
	posts := &mockPostRepo{
		listNearFn: func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
			gotLimit = limit
			return []domain.Post{
				postAt("far", eastOfOrigin(450)),
				postAt("outside", eastOfOrigin(700)),
				postAt("near", eastOfOrigin(50)),
			}, nil
		},
	}
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, usecases.DefaultProximityConfig())

	got, err := svc.NearbyPosts(context.Background(), domain.Location{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != 1000 {
		t.Errorf("expected candidate limit 1000, got %d", gotLimit)
	}
	if len(got) != 2 || got[0].Item.ID != "near" || got[1].Item.ID != "far" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestProximityService_NearbyPosts_Limit(t *testing.T) {
	posts := &mockPostRepo{
		listNearFn: func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
			return []domain.Post{
				postAt("a", eastOfOrigin(10)),
				postAt("b", eastOfOrigin(20)),
				postAt("c", eastOfOrigin(30)),
			}, nil
		},
	}
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, usecases.DefaultProximityConfig())

	got, err := svc.NearbyPosts(context.Background(), domain.Location{}, 100, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 posts, got %d", len(got))
	}
}

func TestProximityService_NearbyPosts_LimitCappedAtMax(t *testing.T) {
	var all []domain.Post
	for i := range 300 {
		all = append(all, postAt(fmt.Sprintf("p%03d", i), eastOfOrigin(float64(i+1))))
	}
	posts := &mockPostRepo{
		listNearFn: func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
			return all, nil
		},
	}
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, usecases.DefaultProximityConfig())

	got, err := svc.NearbyPosts(context.Background(), domain.Location{}, 500, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 200 {
		t.Errorf("expected limit capped at 200, got %d", len(got))
	}
}

func TestProximityService_NearbyPosts_CandidatesQueriedByDistance(t *testing.T) {
	// Candidates are capped; an old post close by must still win over
	// newer ones further out.
	stored := []domain.Post{
		postAt("new-far-1", eastOfOrigin(400)),
		postAt("new-far-2", eastOfOrigin(450)),
		postAt("old-near", eastOfOrigin(10)),
	}
	var (
		gotCenter domain.Location
		gotRadius float64
	)
	posts := &mockPostRepo{
		listNearFn: func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
			gotCenter, gotRadius = center, radius
			ranked := usecases.CollectRanked(usecases.WithinRadius(center, radius, stored))
			out := make([]domain.Post, 0, limit)
			for _, r := range ranked[:min(limit, len(ranked))] {
				out = append(out, r.Item)
			}
			return out, nil
		},
	}
	cfg := usecases.DefaultProximityConfig()
	cfg.MaxCandidates = 2
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, cfg)

	center := domain.Location{Lat: 0, Lon: 0}
	got, err := svc.NearbyPosts(context.Background(), center, 500, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCenter != center || gotRadius != 500 {
		t.Errorf("expected query around %v within 500m, got %v within %v", center, gotCenter, gotRadius)
	}
	if len(got) != 1 || got[0].Item.ID != "old-near" {
		t.Errorf("expected old-near first, got %+v", got)
	}
}

func TestProximityService_NearbyPosts_RepoError(t *testing.T) {
	posts := &mockPostRepo{
		listNearFn: func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
			return nil, errors.New("db down")
		},
	}
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, usecases.DefaultProximityConfig())

	if _, err := svc.NearbyPosts(context.Background(), domain.Location{}, 100, 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestProximityService_NearbyZones_UsesCache(t *testing.T) {
	zones := &mockZoneRepo{
		listFn: func(ctx context.Context) ([]domain.Zone, error) {
			return []domain.Zone{
				{ID: "z1", Location: eastOfOrigin(1500)},
				{ID: "z2", Location: eastOfOrigin(300)},
				{ID: "z3", Location: eastOfOrigin(9000)},
				{ID: "z4"},
			}, nil
		},
	}
	cache := newMockCache()
	cfg := usecases.DefaultProximityConfig()
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, cache, cfg)
	ctx := context.Background()

	got, err := svc.NearbyZones(ctx, domain.Location{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Item.ID != "z2" || got[1].Item.ID != "z1" {
		t.Fatalf("unexpected zones %+v", got)
	}
	if _, ok := cache.data["zones:all"]; !ok {
		t.Error("expected zone list to be cached")
	}

	// A second service sharing the cache never touches the repository.
	other := usecases.NewProximityService(zones, &mockPostRepo{}, cache, cfg)
	if _, err := other.NearbyZones(ctx, domain.Location{}, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if zones.listCalls != 1 {
		t.Errorf("expected 1 repository call, got %d", zones.listCalls)
	}
}

func TestProximityService_InvalidateZones(t *testing.T) {
	current := []domain.Zone{{ID: "old", Location: eastOfOrigin(10)}}
	zones := &mockZoneRepo{
		listFn: func(ctx context.Context) ([]domain.Zone, error) { return current, nil },
	}
	cache := newMockCache()
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, cache, usecases.DefaultProximityConfig())
	ctx := context.Background()

	if _, err := svc.NearbyZones(ctx, domain.Location{}, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = []domain.Zone{{ID: "new", Location: eastOfOrigin(10)}}
	svc.InvalidateZones(ctx)
	if _, ok := cache.data["zones:all"]; ok {
		t.Error("expected cached zone list to be dropped")
	}

	got, err := svc.NearbyZones(ctx, domain.Location{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Item.ID != "new" {
		t.Errorf("expected reloaded zones, got %+v", got)
	}
	if zones.listCalls != 2 {
		t.Errorf("expected 2 repository calls, got %d", zones.listCalls)
	}
}

func TestProximityService_NearbyZones_CacheFailureFallsThrough(t *testing.T) {
	zones := &mockZoneRepo{
		listFn: func(ctx context.Context) ([]domain.Zone, error) {
			return []domain.Zone{{ID: "z1", Location: eastOfOrigin(10)}}, nil
		},
	}
	cache := newMockCache()
	cache.err = errors.New("valkey unavailable")
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, cache, usecases.DefaultProximityConfig())

	got, err := svc.NearbyZones(context.Background(), domain.Location{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 zone, got %d", len(got))
	}
}

func TestProximityService_CurrentZone(t *testing.T) {
	zones := &mockZoneRepo{
		listFn: func(ctx context.Context) ([]domain.Zone, error) {
			return []domain.Zone{
				{ID: "z400", Location: eastOfOrigin(400)},
				{ID: "z250", Location: eastOfOrigin(250)},
			}, nil
		},
	}
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, nil, usecases.DefaultProximityConfig())
	ctx := context.Background()

	cur, err := svc.CurrentZone(ctx, domain.Location{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur == nil || cur.Item.ID != "z250" {
		t.Fatalf("expected z250, got %+v", cur)
	}

	cur, err = svc.CurrentZone(ctx, *eastOfOrigin(5000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur != nil {
		t.Errorf("expected no current zone, got %+v", cur)
	}
}

func TestProximityService_Zone(t *testing.T) {
	zones := &mockZoneRepo{
		listFn: func(ctx context.Context) ([]domain.Zone, error) {
			return []domain.Zone{{ID: "z1", Location: eastOfOrigin(10)}}, nil
		},
		getByIDFn: func(ctx context.Context, id string) (*domain.Zone, error) {
			return &domain.Zone{ID: id}, nil
		},
	}
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, nil, usecases.DefaultProximityConfig())
	ctx := context.Background()

	z, err := svc.Zone(ctx, "z1")
	if err != nil || z.Location == nil {
		t.Fatalf("expected snapshot zone with location, got %+v (%v)", z, err)
	}

	z, err = svc.Zone(ctx, "z9")
	if err != nil || z.ID != "z9" {
		t.Fatalf("expected repository fallback, got %+v (%v)", z, err)
	}
}

func TestProximityService_HotZones(t *testing.T) {
	var gotHours int
	zones := &mockZoneRepo{
		listActivityFn: func(ctx context.Context, center domain.Location, radius float64, recentHours int) ([]domain.ZoneActivity, error) {
			gotHours = recentHours
			return []domain.ZoneActivity{
				activityAt("five", 100, 5),
				activityAt("two", 200, 2),
				activityAt("eight", 300, 8),
				activityAt("big", 400, 250),
			}, nil
		},
	}
	svc := usecases.NewProximityService(zones, &mockPostRepo{}, nil, usecases.DefaultProximityConfig())

	report, err := svc.HotZones(context.Background(), domain.Location{}, 0, 3, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHours != 1 {
		t.Errorf("expected recent window 1h, got %d", gotHours)
	}
	if len(report.Zones) != 3 {
		t.Fatalf("expected 3 zones, got %d", len(report.Zones))
	}
	ids := []string{report.Zones[0].Zone.ID, report.Zones[1].Zone.ID, report.Zones[2].Zone.ID}
	if ids[0] != "big" || ids[1] != "eight" || ids[2] != "five" {
		t.Errorf("unexpected order %v", ids)
	}
	if report.Zones[0].ActivityLevel != domain.ActivityExtreme {
		t.Errorf("expected extreme, got %s", report.Zones[0].ActivityLevel)
	}
	if report.Analyzed != 3 {
		t.Errorf("expected 3 analyzed after min count, got %d", report.Analyzed)
	}
	if report.Stats.TotalCount != 263 {
		t.Errorf("expected total 263, got %d", report.Stats.TotalCount)
	}
	if !strings.HasPrefix(report.SearchArea, "Within 2.0 km of (0.0000, 0.0000)") {
		t.Errorf("unexpected search area %q", report.SearchArea)
	}
}

func TestProximityService_ZonePosts_ClampsLimit(t *testing.T) {
	var gotLimit int
	posts := &mockPostRepo{
		listByZoneFn: func(ctx context.Context, zoneID string, limit int) ([]domain.Post, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc := usecases.NewProximityService(&mockZoneRepo{}, posts, nil, usecases.DefaultProximityConfig())

	if _, err := svc.ZonePosts(context.Background(), "z1", 10_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != 200 {
		t.Errorf("expected clamp to 200, got %d", gotLimit)
	}
}

func TestSearchArea(t *testing.T) {
	got := usecases.SearchArea(domain.Location{Lat: 12.97161, Lon: 77.59463}, 2500, 14)
	want := "Within 2.5 km of (12.9716, 77.5946) - 14 zones analyzed"
	if got != want {
		t.Errorf("SearchArea() = %q, want %q", got, want)
	}
}
