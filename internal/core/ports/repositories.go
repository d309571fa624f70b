package ports

import (
	"context"

	"github.com/geowhisper/towers/internal/core/domain"
)

// ZoneRepository reads zones issued by the clustering backend.
type ZoneRepository interface {
	List(ctx context.Context) ([]domain.Zone, error)
	GetByID(ctx context.Context, id string) (*domain.Zone, error)
	// ListActivity returns per-zone counts for zones within radiusMeters of center.
	ListActivity(ctx context.Context, center domain.Location, radiusMeters float64, recentHours int) ([]domain.ZoneActivity, error)
}

// PostRepository reads posts.
type PostRepository interface {
	// ListNear returns at most limit posts within radiusMeters of center,
	// nearest first.
	ListNear(ctx context.Context, center domain.Location, radiusMeters float64, limit int) ([]domain.Post, error)
	ListByZone(ctx context.Context, zoneID string, limit int) ([]domain.Post, error)
}
