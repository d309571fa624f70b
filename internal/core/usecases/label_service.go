package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/pkg/geospatial"
	"github.com/geowhisper/towers/internal/pkg/metrics"
)

// resolveTimeout bounds one shared reverse-geocoding lookup.
const resolveTimeout = 15 * time.Second

// LabelService produces human-readable zone labels: cached geocoding
// results first, then deterministic offline fallbacks.
type LabelService struct {
	store     ports.KeyValueStore
	geocoder  ports.ReverseGeocoder
	publisher ports.EventPublisher
	inflight  singleflight.Group
}

// NewLabelService creates a new LabelService. geocoder is nil when no
// geocoding token is configured; publisher may be nil.
func NewLabelService(store ports.KeyValueStore, geocoder ports.ReverseGeocoder, publisher ports.EventPublisher) *LabelService {
	return &LabelService{store: store, geocoder: geocoder, publisher: publisher}
}

// CachedLabel returns the label stored for zoneID in the session. Storage
// failures are reported as a miss.
func (s *LabelService) CachedLabel(ctx context.Context, sessionID, zoneID string) (string, bool) {
	label, err := s.store.Get(ctx, LabelKey(sessionID, zoneID))
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			slog.Debug("label cache read failed", "zone_id", zoneID, "error", err)
		}
		metrics.CacheMisses.WithLabelValues("zone_label").Inc()
		return "", false
	}
	if label == "" {
		metrics.CacheMisses.WithLabelValues("zone_label").Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues("zone_label").Inc()
	return label, true
}

// FallbackLabel returns an offline label for zone. user may be nil.
func (s *LabelService) FallbackLabel(zone domain.Zone, user *domain.Location) string {
	return FallbackLabel(zone, user)
}

// FallbackLabel picks, in order: the distance from user to the zone, the
// zone coordinates, then a label derived from the zone id.
func FallbackLabel(zone domain.Zone, user *domain.Location) string {
	if zone.Location != nil {
		if user != nil {
			return geospatial.FormatDistance(user.DistanceTo(*zone.Location))
		}
		return geospatial.FormatCoordinates(zone.Location.Lat, zone.Location.Lon)
	}
	if zone.ID == "" {
		return "Zone unknown"
	}
	return "Zone " + prefix(zone.ID, 8)
}

// ResolveAndCache reverse-geocodes the zone location and stores the result
// as the zone's session label. It reports false, and writes nothing, when no
// geocoder is configured, the zone has no location, or the lookup fails.
// Concurrent calls for the same session and zone share one lookup.
func (s *LabelService) ResolveAndCache(ctx context.Context, sessionID string, zone domain.Zone) (string, bool) {
	if s.geocoder == nil || zone.Location == nil {
		metrics.LabelsResolved.WithLabelValues("skipped").Inc()
		return "", false
	}

	// The shared lookup outlives any single caller; each caller still stops
	// waiting when its own context ends.
	key := LabelKey(sessionID, zone.ID)
	ch := s.inflight.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return s.resolve(rctx, sessionID, zone)
	})

	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err != nil {
		slog.Warn("zone label resolution failed", "zone_id", zone.ID, "error", err)
		metrics.LabelsResolved.WithLabelValues("failed").Inc()
		return "", false
	}

	metrics.LabelsResolved.WithLabelValues("resolved").Inc()
	return v.(string), true
}

func (s *LabelService) resolve(ctx context.Context, sessionID string, zone domain.Zone) (string, error) {
	loc := *zone.Location
	place, err := s.geocoder.ReverseGeocode(ctx, loc)
	if err != nil {
		return "", err
	}

	label := placeLabel(place, loc)

	if err := s.store.Set(ctx, LabelKey(sessionID, zone.ID), label); err != nil {
		slog.Debug("label cache write failed", "zone_id", zone.ID, "error", err)
	}

	if s.publisher != nil {
		ev := ports.LabelResolved{SessionID: sessionID, ZoneID: zone.ID, Label: label}
		if err := s.publisher.PublishLabelResolved(ctx, ev); err != nil {
			slog.Debug("publish label event failed", "zone_id", zone.ID, "error", err)
		}
	}

	return label, nil
}

// DisplayLabel returns the cached label when present and the offline
// fallback otherwise. It never performs network I/O.
func (s *LabelService) DisplayLabel(ctx context.Context, sessionID string, zone domain.Zone, user *domain.Location) (label string, cached bool) {
	if l, ok := s.CachedLabel(ctx, sessionID, zone.ID); ok {
		return l, true
	}
	return FallbackLabel(zone, user), false
}

// placeLabel prefers the short place text over the full place name, then
// compact coordinates.
func placeLabel(place *domain.Place, loc domain.Location) string {
	if place != nil {
		if place.Text != "" {
			return place.Text
		}
		if place.PlaceName != "" {
			return place.PlaceName
		}
	}
	return fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lon)
}
