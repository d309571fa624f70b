package ports

import (
	"context"
	"errors"

	"github.com/geowhisper/towers/internal/core/domain"
)

var (
	// ErrNotFound is returned by stores when a key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrWriteFailed wraps a failure to store the value computed by an update.
	ErrWriteFailed = errors.New("write failed")
	// ErrUpdateConflict is returned when an update kept losing races to other writers.
	ErrUpdateConflict = errors.New("update conflict")
)

// KeyValueStore is session-scoped string storage. Implementations return
// ErrNotFound for missing keys; callers treat every failure as best-effort.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// UpdateFunc computes the next value of a key from its current value. found
// is false when the key is absent. Returning write=false leaves the key as is.
type UpdateFunc func(current string, found bool) (next string, write bool, err error)

// AtomicUpdater is implemented by stores that apply a read-modify-write to
// one key atomically for every process sharing the store. fn may run more
// than once; an error from fn aborts the update and is returned unchanged.
type AtomicUpdater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ReverseGeocoder turns a coordinate into a place name.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, loc domain.Location) (*domain.Place, error)
}

// LabelResolved is emitted after a zone label has been geocoded and cached.
type LabelResolved struct {
	SessionID string `json:"session_id"`
	ZoneID    string `json:"zone_id"`
	Label     string `json:"label"`
}

// PrefetchRequest asks the prefetcher to resolve labels for a set of zones.
type PrefetchRequest struct {
	SessionID string        `json:"session_id"`
	Zones     []domain.Zone `json:"zones"`
}

// EventPublisher publishes zone events to a message broker.
type EventPublisher interface {
	PublishLabelResolved(ctx context.Context, ev LabelResolved) error
	PublishPrefetchRequest(ctx context.Context, req PrefetchRequest) error
}

// EventSubscriber subscribes to zone events from a message broker.
type EventSubscriber interface {
	SubscribePrefetchRequests(ctx context.Context, handler func(ctx context.Context, req PrefetchRequest) error) error
}
