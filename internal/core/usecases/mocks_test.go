package usecases_test

import (
	"context"
	"sync"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
)

// --- Mock KeyValueStore ---

type mockStore struct {
	mu    sync.Mutex
	data  map[string]string
	getFn func(ctx context.Context, key string) (string, error)
	setFn func(ctx context.Context, key, value string) error
	sets  int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.sets++
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// --- Mock ReverseGeocoder ---

type mockGeocoder struct {
	mu    sync.Mutex
	calls int
	geoFn func(ctx context.Context, loc domain.Location) (*domain.Place, error)
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, loc domain.Location) (*domain.Place, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.geoFn != nil {
		return m.geoFn(ctx, loc)
	}
	return nil, nil
}

func (m *mockGeocoder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	resolved []ports.LabelResolved
	prefetch []ports.PrefetchRequest
	err      error
}

func (m *mockPublisher) PublishLabelResolved(ctx context.Context, ev ports.LabelResolved) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, ev)
	return m.err
}

func (m *mockPublisher) PublishPrefetchRequest(ctx context.Context, req ports.PrefetchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetch = append(m.prefetch, req)
	return m.err
}

// --- Mock repositories ---

type mockZoneRepo struct {
	listFn         func(ctx context.Context) ([]domain.Zone, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Zone, error)
	listActivityFn func(ctx context.Context, center domain.Location, radius float64, recentHours int) ([]domain.ZoneActivity, error)
	listCalls      int
}

func (m *mockZoneRepo) List(ctx context.Context) ([]domain.Zone, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockZoneRepo) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *mockZoneRepo) ListActivity(ctx context.Context, center domain.Location, radius float64, recentHours int) ([]domain.ZoneActivity, error) {
	if m.listActivityFn != nil {
		return m.listActivityFn(ctx, center, radius, recentHours)
	}
	return nil, nil
}

type mockPostRepo struct {
	listNearFn   func(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error)
	listByZoneFn func(ctx context.Context, zoneID string, limit int) ([]domain.Post, error)
}

func (m *mockPostRepo) ListNear(ctx context.Context, center domain.Location, radius float64, limit int) ([]domain.Post, error) {
	if m.listNearFn != nil {
		return m.listNearFn(ctx, center, radius, limit)
	}
	return nil, nil
}

func (m *mockPostRepo) ListByZone(ctx context.Context, zoneID string, limit int) ([]domain.Post, error) {
	if m.listByZoneFn != nil {
		return m.listByZoneFn(ctx, zoneID, limit)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	err  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// eastOfOrigin returns a point on the equator about meters east of (0, 0).
func eastOfOrigin(meters float64) *domain.Location {
	return &domain.Location{Lat: 0, Lon: meters / 111194.92664455873}
}
