package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
)

// ZoneRepo implements ports.ZoneRepository with pgx.
type ZoneRepo struct {
	db *DB
}

// NewZoneRepo creates a new ZoneRepo.
func NewZoneRepo(db *DB) *ZoneRepo {
	return &ZoneRepo{db: db}
}

const zoneColumns = `
	z.id,
	ST_Y(z.location::geometry) AS lat,
	ST_X(z.location::geometry) AS lon,
	z.radius_meters,
	(SELECT count(*) FROM posts p WHERE p.zone_id = z.id) AS post_count,
	z.created_at, z.updated_at`

// List returns every zone.
func (r *ZoneRepo) List(ctx context.Context) ([]domain.Zone, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+zoneColumns+` FROM zones z ORDER BY z.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// GetByID returns a zone by id, or ports.ErrNotFound.
func (r *ZoneRepo) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+zoneColumns+` FROM zones z WHERE z.id = $1`, id)
	z, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// ListActivity aggregates posts per zone for zones within radiusMeters of
// center. Counts cover all time; RecentCount covers the last recentHours.
func (r *ZoneRepo) ListActivity(ctx context.Context, center domain.Location, radiusMeters float64, recentHours int) ([]domain.ZoneActivity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+zoneColumns+`,
		       count(p.id) AS total,
		       count(p.id) FILTER (WHERE p.created_at > now() - make_interval(hours => $4)) AS recent,
		       count(DISTINCT p.user_id) AS users
		FROM zones z
		LEFT JOIN posts p ON p.zone_id = z.id
		WHERE z.location IS NOT NULL
		  AND ST_DWithin(z.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		GROUP BY z.id
		ORDER BY total DESC
	`, center.Lon, center.Lat, radiusMeters, recentHours)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.ZoneActivity
	for rows.Next() {
		var (
			a        domain.ZoneActivity
			lat, lon *float64
		)
		if err := rows.Scan(
			&a.Zone.ID, &lat, &lon, &a.Zone.RadiusMeters, &a.Zone.PostCount,
			&a.Zone.CreatedAt, &a.Zone.UpdatedAt,
			&a.Count, &a.RecentCount, &a.UniqueUsers,
		); err != nil {
			return nil, err
		}
		a.Zone.Location = location(lat, lon)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanZone(row pgx.Row) (domain.Zone, error) {
	var (
		z        domain.Zone
		lat, lon *float64
	)
	if err := row.Scan(&z.ID, &lat, &lon, &z.RadiusMeters, &z.PostCount, &z.CreatedAt, &z.UpdatedAt); err != nil {
		return domain.Zone{}, err
	}
	z.Location = location(lat, lon)
	return z, nil
}

func location(lat, lon *float64) *domain.Location {
	if lat == nil || lon == nil {
		return nil
	}
	return &domain.Location{Lat: *lat, Lon: *lon}
}
