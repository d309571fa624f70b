package workflows

import (
	"context"
	"errors"

	"github.com/geowhisper/towers/internal/core/domain"
)

// LabelOutcome reports what ResolveZoneLabel did.
type LabelOutcome string

const (
	OutcomeResolved LabelOutcome = "resolved"
	OutcomeCached   LabelOutcome = "cached"
	OutcomeSkipped  LabelOutcome = "skipped"
)

// ErrLabelUnresolved is returned when the geocoder could not produce a label,
// so Temporal retries the activity.
var ErrLabelUnresolved = errors.New("zone label unresolved")

// LabelResolver is the part of the label service the activities need.
type LabelResolver interface {
	CachedLabel(ctx context.Context, sessionID, zoneID string) (string, bool)
	ResolveAndCache(ctx context.Context, sessionID string, zone domain.Zone) (string, bool)
}

// LabelActivities holds the activity implementations for the prefetch workflow.
type LabelActivities struct {
	Labels LabelResolver
	// Geocoding is false when no geocoder is configured; every zone is then skipped.
	Geocoding bool
}

// ResolveZoneLabel geocodes and caches one zone label unless the session
// already has one.
func (a *LabelActivities) ResolveZoneLabel(ctx context.Context, sessionID string, zone domain.Zone) (LabelOutcome, error) {
	if _, ok := a.Labels.CachedLabel(ctx, sessionID, zone.ID); ok {
		return OutcomeCached, nil
	}
	if !a.Geocoding || zone.Location == nil {
		return OutcomeSkipped, nil
	}
	if _, ok := a.Labels.ResolveAndCache(ctx, sessionID, zone); !ok {
		return "", ErrLabelUnresolved
	}
	return OutcomeResolved, nil
}
