package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/geowhisper/towers/internal/core/domain"
)

// PostRepo implements ports.PostRepository with pgx.
type PostRepo struct {
	db *DB
}

// NewPostRepo creates a new PostRepo.
func NewPostRepo(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `
	id, COALESCE(zone_id, ''), user_id, COALESCE(username, ''), content,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	created_at`

// ListNear returns the posts within radiusMeters of center, nearest first.
// The limit applies after ordering so a dense area never hides a closer post.
func (r *PostRepo) ListNear(ctx context.Context, center domain.Location, radiusMeters float64, limit int) ([]domain.Post, error) {
	rows, err := r.db.Pool.Query(ctx, `
		WITH q AS (SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS pt)
		SELECT `+postColumns+`
		FROM posts, q
		WHERE ST_DWithin(location, q.pt, $3)
		ORDER BY location <-> q.pt, created_at DESC
		LIMIT $4
	`, center.Lon, center.Lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

// ListByZone returns the newest posts of a zone.
func (r *PostRepo) ListByZone(ctx context.Context, zoneID string, limit int) ([]domain.Post, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE zone_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, zoneID, limit)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(
			&p.ID, &p.ZoneID, &p.UserID, &p.Username, &p.Content,
			&p.Location.Lat, &p.Location.Lon, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
