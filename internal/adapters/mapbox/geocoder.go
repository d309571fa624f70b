// Package mapbox implements reverse geocoding against the Mapbox Geocoding v5 API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/pkg/metrics"
	"github.com/geowhisper/towers/internal/pkg/telemetry"
)

// DefaultBaseURL is the public Mapbox API host.
const DefaultBaseURL = "https://api.mapbox.com"

// placeTypes restricts results to human-scale names.
const placeTypes = "place,locality,neighborhood,address"

var (
	// ErrNoFeatures is returned when the response carries no usable feature.
	ErrNoFeatures = errors.New("mapbox: no features")
	// ErrMissingToken is returned by New when no access token is given.
	ErrMissingToken = errors.New("mapbox: missing access token")
)

type featureCollection struct {
	Features []struct {
		Text      string `json:"text"`
		PlaceName string `json:"place_name"`
	} `json:"features"`
}

// Geocoder implements ports.ReverseGeocoder.
type Geocoder struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a Geocoder. timeout bounds each request.
func New(baseURL, token string, timeout time.Duration) (*Geocoder, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Geocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// ReverseGeocode returns the first feature for loc.
func (g *Geocoder) ReverseGeocode(ctx context.Context, loc domain.Location) (_ *domain.Place, err error) {
	ctx, span := telemetry.StartSpan(ctx, "mapbox.reverse_geocode",
		attribute.Float64("geo.lat", loc.Lat),
		attribute.Float64("geo.lon", loc.Lon),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.requestURL(loc), nil)
	if err != nil {
		return nil, fmt.Errorf("mapbox: build request: %w", err)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.GeocoderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocoderRequests.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("mapbox: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GeocoderRequests.WithLabelValues("http_" + strconv.Itoa(resp.StatusCode/100) + "xx").Inc()
		return nil, fmt.Errorf("mapbox: unexpected status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		metrics.GeocoderRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("mapbox: decode: %w", err)
	}
	if len(fc.Features) == 0 {
		metrics.GeocoderRequests.WithLabelValues("empty").Inc()
		return nil, ErrNoFeatures
	}

	metrics.GeocoderRequests.WithLabelValues("ok").Inc()
	f := fc.Features[0]
	slog.Debug("reverse geocoded", "lat", loc.Lat, "lon", loc.Lon, "text", f.Text)
	return &domain.Place{Text: f.Text, PlaceName: f.PlaceName}, nil
}

func (g *Geocoder) requestURL(loc domain.Location) string {
	coords := strconv.FormatFloat(loc.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(loc.Lat, 'f', -1, 64)

	q := url.Values{}
	q.Set("types", placeTypes)
	q.Set("limit", "1")
	q.Set("access_token", g.token)

	return g.baseURL + "/geocoding/v5/mapbox.places/" + coords + ".json?" + q.Encode()
}
