package workflows

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/geowhisper/towers/internal/core/domain"
)

type fakeResolver struct {
	mu       sync.Mutex
	cached   map[string]string
	failing  map[string]bool
	resolves map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{cached: map[string]string{}, failing: map[string]bool{}, resolves: map[string]int{}}
}

func (f *fakeResolver) CachedLabel(_ context.Context, sessionID, zoneID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.cached[sessionID+"/"+zoneID]
	return l, ok
}

func (f *fakeResolver) ResolveAndCache(_ context.Context, sessionID string, zone domain.Zone) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves[zone.ID]++
	if f.failing[zone.ID] {
		return "", false
	}
	f.cached[sessionID+"/"+zone.ID] = "Place " + zone.ID
	return "Place " + zone.ID, true
}

func located(id string) domain.Zone {
	return domain.Zone{ID: id, Location: &domain.Location{Lat: 12.97, Lon: 77.59}}
}

func runPrefetch(t *testing.T, acts *LabelActivities, input PrefetchInput) PrefetchResult {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(LabelPrefetchWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(LabelPrefetchWorkflow, input)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res PrefetchResult
	require.NoError(t, env.GetWorkflowResult(&res))
	return res
}

func TestLabelPrefetchWorkflow_Mixed(t *testing.T) {
	r := newFakeResolver()
	r.cached["s1/b"] = "Already"
	r.failing["c"] = true

	res := runPrefetch(t, &LabelActivities{Labels: r, Geocoding: true}, PrefetchInput{
		SessionID: "s1",
		Zones:     []domain.Zone{located("a"), located("b"), located("c"), {ID: "d"}, located("a")},
	})

	assert.Equal(t, PrefetchResult{Resolved: 1, Cached: 1, Skipped: 2, Failed: 1}, res)
	assert.Equal(t, 1, r.resolves["a"])
	assert.Zero(t, r.resolves["b"])
	assert.Equal(t, 3, r.resolves["c"], "failed zones are retried up to MaximumAttempts")
	assert.Equal(t, "Place a", r.cached["s1/a"])
}

func TestLabelPrefetchWorkflow_NoGeocoder(t *testing.T) {
	r := newFakeResolver()

	res := runPrefetch(t, &LabelActivities{Labels: r}, PrefetchInput{
		SessionID: "s1",
		Zones:     []domain.Zone{located("a"), located("b")},
	})

	assert.Equal(t, PrefetchResult{Skipped: 2}, res)
	assert.Empty(t, r.resolves)
}

func TestLabelPrefetchWorkflow_Empty(t *testing.T) {
	res := runPrefetch(t, &LabelActivities{Labels: newFakeResolver(), Geocoding: true}, PrefetchInput{SessionID: "s1"})
	assert.Equal(t, PrefetchResult{}, res)
}

func TestResolveZoneLabel_Outcomes(t *testing.T) {
	r := newFakeResolver()
	acts := &LabelActivities{Labels: r, Geocoding: true}
	ctx := context.Background()

	out, err := acts.ResolveZoneLabel(ctx, "s1", located("a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, out)

	out, err = acts.ResolveZoneLabel(ctx, "s1", located("a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCached, out)

	out, err = acts.ResolveZoneLabel(ctx, "s1", domain.Zone{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, out)

	r.failing["f"] = true
	_, err = acts.ResolveZoneLabel(ctx, "s1", located("f"))
	assert.ErrorIs(t, err, ErrLabelUnresolved)
}
