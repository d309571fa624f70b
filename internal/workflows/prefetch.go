package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/geowhisper/towers/internal/core/domain"
)

// ResolveZoneLabelActivity is the registered name of LabelActivities.ResolveZoneLabel.
const ResolveZoneLabelActivity = "ResolveZoneLabel"

// PrefetchInput is the input for the label prefetch workflow.
type PrefetchInput struct {
	SessionID string
	Zones     []domain.Zone
}

// PrefetchResult counts what the workflow did per zone.
type PrefetchResult struct {
	Resolved int
	Cached   int
	Skipped  int
	Failed   int
}

// LabelPrefetchWorkflow resolves labels for a batch of zones in one session,
// one activity per zone. Zones without a location are skipped without
// scheduling anything; a failed zone does not fail the batch.
func LabelPrefetchWorkflow(ctx workflow.Context, input PrefetchInput) (PrefetchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting label prefetch", "session", input.SessionID, "zones", len(input.Zones))

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var result PrefetchResult
	seen := make(map[string]bool, len(input.Zones))
	futures := make([]workflow.Future, 0, len(input.Zones))
	for _, z := range input.Zones {
		if z.Location == nil || seen[z.ID] {
			result.Skipped++
			continue
		}
		seen[z.ID] = true
		futures = append(futures, workflow.ExecuteActivity(ctx, ResolveZoneLabelActivity, input.SessionID, z))
	}

	for _, f := range futures {
		var out LabelOutcome
		if err := f.Get(ctx, &out); err != nil {
			logger.Warn("zone label prefetch failed", "error", err)
			result.Failed++
			continue
		}
		switch out {
		case OutcomeResolved:
			result.Resolved++
		case OutcomeCached:
			result.Cached++
		default:
			result.Skipped++
		}
	}

	logger.Info("Label prefetch finished",
		"resolved", result.Resolved, "cached", result.Cached,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}
