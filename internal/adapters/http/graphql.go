package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/pkg/geospatial"
)

const sessionCtxKey ctxKey = "session_id"

func sessionFromCtx(ctx context.Context) string {
	sid, _ := ctx.Value(sessionCtxKey).(string)
	return sid
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	zoneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Zone",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: locationType},
			"radius_meters": &graphql.Field{Type: graphql.Int},
			"post_count":    &graphql.Field{Type: graphql.Int},
		},
	})

	postType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"zone_id":  &graphql.Field{Type: graphql.String},
			"user_id":  &graphql.Field{Type: graphql.String},
			"username": &graphql.Field{Type: graphql.String},
			"content":  &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: locationType},
		},
	})

	rankedZoneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RankedZone",
		Fields: graphql.Fields{
			"zone":           &graphql.Field{Type: zoneType},
			"distance":       &graphql.Field{Type: graphql.Float},
			"distance_label": &graphql.Field{Type: graphql.String},
		},
	})

	rankedPostType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RankedPost",
		Fields: graphql.Fields{
			"post":           &graphql.Field{Type: postType},
			"distance":       &graphql.Field{Type: graphql.Float},
			"distance_label": &graphql.Field{Type: graphql.String},
		},
	})

	hotZoneType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HotZone",
		Fields: graphql.Fields{
			"zone":           &graphql.Field{Type: zoneType},
			"rank":           &graphql.Field{Type: graphql.Int},
			"count":          &graphql.Field{Type: graphql.Int},
			"unique_users":   &graphql.Field{Type: graphql.Int},
			"distance":       &graphql.Field{Type: graphql.Float},
			"activity_level": &graphql.Field{Type: graphql.String},
			"activity_score": &graphql.Field{Type: graphql.Float},
		},
	})

	hotZoneStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HotZoneStats",
		Fields: graphql.Fields{
			"total_count":        &graphql.Field{Type: graphql.Int},
			"total_unique_users": &graphql.Field{Type: graphql.Int},
			"hot_count":          &graphql.Field{Type: graphql.Int},
			"very_hot_count":     &graphql.Field{Type: graphql.Int},
			"extreme_count":      &graphql.Field{Type: graphql.Int},
			"most_active":        &graphql.Field{Type: hotZoneType},
		},
	})

	hotZoneReportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HotZoneReport",
		Fields: graphql.Fields{
			"zones":       &graphql.Field{Type: graphql.NewList(hotZoneType)},
			"stats":       &graphql.Field{Type: hotZoneStatsType},
			"search_area": &graphql.Field{Type: graphql.String},
			"analyzed":    &graphql.Field{Type: graphql.Int},
		},
	})

	zoneLabelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ZoneLabel",
		Fields: graphql.Fields{
			"zone_id": &graphql.Field{Type: graphql.String},
			"label":   &graphql.Field{Type: graphql.String},
			"source":  &graphql.Field{Type: graphql.String},
			"number":  &graphql.Field{Type: graphql.String},
		},
	})

	areaArgs := graphql.FieldConfigArgument{
		"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"zoneLabel": &graphql.Field{
				Type:        zoneLabelType,
				Description: "Display label of a zone for the calling session",
				Args: graphql.FieldConfigArgument{
					"zone_id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"user_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"user_lon": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sid := sessionFromCtx(p.Context)
					id := p.Args["zone_id"].(string)

					zone := domain.Zone{ID: id}
					if z, err := deps.Proximity.Zone(p.Context, id); err == nil {
						zone = *z
					}

					var user *domain.Location
					lat, okLat := p.Args["user_lat"].(float64)
					lon, okLon := p.Args["user_lon"].(float64)
					if okLat && okLon {
						user = &domain.Location{Lat: lat, Lon: lon}
					}

					label, cached := deps.Labels.DisplayLabel(p.Context, sid, zone, user)
					source := SourceFallback
					if cached {
						source = SourceCached
					}
					return ZoneLabelResponse{
						ZoneID: id,
						Label:  label,
						Source: source,
						Number: deps.Numbers.ZoneLabel(p.Context, sid, id),
					}, nil
				},
			},
			"zoneNumber": &graphql.Field{
				Type:        graphql.String,
				Description: "Session-local numbered label of a zone, e.g. \"Zone 3\"",
				Args: graphql.FieldConfigArgument{
					"zone_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Numbers.ZoneLabel(p.Context, sessionFromCtx(p.Context), p.Args["zone_id"].(string)), nil
				},
			},
			"nearbyZones": &graphql.Field{
				Type:        graphql.NewList(rankedZoneType),
				Description: "Zones within a radius, nearest first",
				Args:        areaArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Location{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					ranked, err := deps.Proximity.NearbyZones(p.Context, center, p.Args["radius"].(float64))
					if err != nil {
						return nil, err
					}
					out := make([]RankedZone, 0, len(ranked))
					for _, r := range ranked {
						out = append(out, rankedZone(r))
					}
					return out, nil
				},
			},
			"nearbyPosts": &graphql.Field{
				Type:        graphql.NewList(rankedPostType),
				Description: "Posts within a radius, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":    areaArgs["lat"],
					"lon":    areaArgs["lon"],
					"radius": areaArgs["radius"],
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Location{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					ranked, err := deps.Proximity.NearbyPosts(p.Context, center, p.Args["radius"].(float64), p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]RankedPost, 0, len(ranked))
					for _, r := range ranked {
						out = append(out, RankedPost{Post: r.Item, Distance: r.Distance, DistanceLabel: geospatial.FormatDistance(r.Distance)})
					}
					return out, nil
				},
			},
			"hotZones": &graphql.Field{
				Type:        hotZoneReportType,
				Description: "Busiest zones around a point",
				Args: graphql.FieldConfigArgument{
					"lat":       areaArgs["lat"],
					"lon":       areaArgs["lon"],
					"radius":    areaArgs["radius"],
					"top":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"min_count": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Location{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					return deps.Proximity.HotZones(p.Context, center, p.Args["radius"].(float64),
						p.Args["top"].(int), p.Args["min_count"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        context.WithValue(c.UserContext(), sessionCtxKey, sessionID(c)),
		})

		return c.JSON(result)
	}
}
