package http

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/pkg/geospatial"
)

const maxRadiusMeters = 50000

// Label sources reported to clients.
const (
	SourceCached   = "cached"
	SourceFallback = "fallback"
)

// ZoneLabelResponse is the display label of a zone for the calling session.
type ZoneLabelResponse struct {
	ZoneID string `json:"zone_id"`
	Label  string `json:"label"`
	Source string `json:"source"`
	Number string `json:"number"`
}

// ZoneNumberResponse is the session-local numbered label of a zone.
type ZoneNumberResponse struct {
	ZoneID string `json:"zone_id"`
	Label  string `json:"label"`
	Number int    `json:"number,omitempty"`
}

// RankedZone is a zone with its distance from the query point.
type RankedZone struct {
	Zone          domain.Zone `json:"zone"`
	Distance      float64     `json:"distance"`
	DistanceLabel string      `json:"distance_label"`
}

// CurrentZoneResponse is the zone the caller stands in.
type CurrentZoneResponse struct {
	RankedZone
	Label  string `json:"label"`
	Number string `json:"number"`
}

// RankedPost is a post with its distance from the query point.
type RankedPost struct {
	Post          domain.Post `json:"post"`
	Distance      float64     `json:"distance"`
	DistanceLabel string      `json:"distance_label"`
}

// DistanceResponse is a great-circle distance and its display phrase.
type DistanceResponse struct {
	Meters float64 `json:"meters"`
	Label  string  `json:"label"`
}

// ZoneLabelHandler returns the display label of a zone. Cached labels win;
// otherwise the offline fallback is returned and, unless resolve=true asks
// for a synchronous lookup, a prefetch is queued for the zone.
func ZoneLabelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		sid := sessionID(c)

		user, err := queryLocation(c, "user_lat", "user_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		zone, err := lookupZone(c, deps)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		resp := ZoneLabelResponse{
			ZoneID: zone.ID,
			Number: deps.Numbers.ZoneLabel(ctx, sid, zone.ID),
		}

		if c.QueryBool("resolve") {
			if label, ok := deps.Labels.ResolveAndCache(ctx, sid, zone); ok {
				resp.Label, resp.Source = label, SourceCached
				return c.JSON(resp)
			}
		}

		label, cached := deps.Labels.DisplayLabel(ctx, sid, zone, user)
		resp.Label = label
		if cached {
			resp.Source = SourceCached
			return c.JSON(resp)
		}
		resp.Source = SourceFallback

		if deps.Publisher != nil && zone.Location != nil && !c.QueryBool("resolve") {
			req := ports.PrefetchRequest{SessionID: sid, Zones: []domain.Zone{zone}}
			if err := deps.Publisher.PublishPrefetchRequest(ctx, req); err != nil {
				LoggerFromCtx(ctx).Debug("queue label prefetch failed", "zone_id", zone.ID, "error", err)
			}
		}
		return c.JSON(resp)
	}
}

// ZoneNumberHandler returns the session-local number of a zone, assigning
// the next free one on first sight.
func ZoneNumberHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		sid := sessionID(c)
		id := c.Params("id")

		resp := ZoneNumberResponse{ZoneID: id, Label: deps.Numbers.ZoneLabel(ctx, sid, id)}
		if n, ok := deps.Numbers.ZoneNumber(ctx, sid, id); ok {
			resp.Number = n
		}
		return c.JSON(resp)
	}
}

// NearbyZonesHandler returns zones within a radius of a point, nearest first.
func NearbyZonesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, radius, err := areaQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		ranked, err := deps.Proximity.NearbyZones(c.UserContext(), center, radius)
		if err != nil {
			return errInternal(c, "failed to load zones", err)
		}

		out := make([]RankedZone, 0, len(ranked))
		for _, r := range ranked {
			out = append(out, rankedZone(r))
		}
		return c.JSON(out)
	}
}

// CurrentZoneHandler returns the zone the caller stands in, with its label
// and session number.
func CurrentZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		sid := sessionID(c)

		center, err := requiredLocation(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		cur, err := deps.Proximity.CurrentZone(ctx, center)
		if err != nil {
			return errInternal(c, "failed to load zones", err)
		}
		if cur == nil {
			return errNotFound(c, "no zone at this location")
		}

		label, _ := deps.Labels.DisplayLabel(ctx, sid, cur.Item, &center)
		return c.JSON(CurrentZoneResponse{
			RankedZone: rankedZone(*cur),
			Label:      label,
			Number:     deps.Numbers.ZoneLabel(ctx, sid, cur.Item.ID),
		})
	}
}

// HotZonesHandler ranks the busiest zones around a point.
func HotZonesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, radius, err := areaQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		top := c.QueryInt("top", 0)
		if top < 0 || top > 50 {
			return errBadRequest(c, "top must be between 1 and 50")
		}

		report, err := deps.Proximity.HotZones(c.UserContext(), center, radius, top, c.QueryInt("min_count", 0))
		if err != nil {
			return errInternal(c, "failed to rank zones", err)
		}
		return c.JSON(report)
	}
}

// NearbyPostsHandler returns posts within a radius of a point, nearest
// first, paginated over the capped result set.
func NearbyPostsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, radius, err := areaQuery(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		cfg := deps.Proximity.Config()
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", cfg.NearbyPostsLimit)
		if offset < 0 {
			offset = 0
		}
		switch {
		case limit <= 0:
			limit = cfg.NearbyPostsLimit
		case limit > cfg.MaxPostsPerZone:
			limit = cfg.MaxPostsPerZone
		}

		ranked, err := deps.Proximity.NearbyPosts(c.UserContext(), center, radius, cfg.MaxPostsPerZone)
		if err != nil {
			return errInternal(c, "failed to load posts", err)
		}

		out := make([]RankedPost, 0, len(ranked))
		for _, r := range ranked {
			out = append(out, RankedPost{Post: r.Item, Distance: r.Distance, DistanceLabel: geospatial.FormatDistance(r.Distance)})
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: len(out)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: paginate(out, offset, limit), Pagination: pg})
	}
}

// ZonePostsHandler returns the newest posts of a zone.
func ZonePostsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		posts, err := deps.Proximity.ZonePosts(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
		if err != nil {
			return errInternal(c, "failed to load posts", err)
		}
		if posts == nil {
			posts = []domain.Post{}
		}
		return c.JSON(posts)
	}
}

// DistanceHandler returns the distance between two points.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := requiredLocation(c, "from_lat", "from_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		to, err := requiredLocation(c, "to_lat", "to_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		m := from.DistanceTo(to)
		return c.JSON(DistanceResponse{Meters: m, Label: geospatial.FormatDistance(m)})
	}
}

func rankedZone(r domain.Ranked[domain.Zone]) RankedZone {
	return RankedZone{Zone: r.Item, Distance: r.Distance, DistanceLabel: geospatial.FormatDistance(r.Distance)}
}

// lookupZone builds the zone named by the :id param. An explicit lat/lon
// overrides the stored location; unknown zones are labelled from their id.
func lookupZone(c *fiber.Ctx, deps *Dependencies) (domain.Zone, error) {
	id := c.Params("id")
	loc, err := queryLocation(c, "lat", "lon")
	if err != nil {
		return domain.Zone{}, err
	}
	if loc != nil {
		return domain.Zone{ID: id, Location: loc}, nil
	}

	z, err := deps.Proximity.Zone(c.UserContext(), id)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			LoggerFromCtx(c.UserContext()).Warn("zone lookup failed", "zone_id", id, "error", err)
		}
		return domain.Zone{ID: id}, nil
	}
	return *z, nil
}

// areaQuery reads lat, lon and an optional radius in meters. A missing
// radius is 0, which the services replace with their default.
func areaQuery(c *fiber.Ctx) (domain.Location, float64, error) {
	center, err := requiredLocation(c, "lat", "lon")
	if err != nil {
		return domain.Location{}, 0, err
	}
	radius := 0.0
	if raw := c.Query("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(radius) || radius <= 0 || radius > maxRadiusMeters {
			return domain.Location{}, 0, fmt.Errorf("radius must be between 1 and %d meters", maxRadiusMeters)
		}
	}
	return center, radius, nil
}

func requiredLocation(c *fiber.Ctx, latKey, lonKey string) (domain.Location, error) {
	loc, err := queryLocation(c, latKey, lonKey)
	if err != nil {
		return domain.Location{}, err
	}
	if loc == nil {
		return domain.Location{}, fmt.Errorf("%s and %s are required", latKey, lonKey)
	}
	return *loc, nil
}

// queryLocation parses an optional coordinate pair. Zero is a valid
// coordinate, so absence is detected on the raw values.
func queryLocation(c *fiber.Ctx, latKey, lonKey string) (*domain.Location, error) {
	rawLat, rawLon := c.Query(latKey), c.Query(lonKey)
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, fmt.Errorf("%s and %s must be given together", latKey, lonKey)
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%s must be a latitude between -90 and 90", latKey)
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%s must be a longitude between -180 and 180", lonKey)
	}
	return &domain.Location{Lat: lat, Lon: lon}, nil
}
