package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/geowhisper/towers/internal/adapters/memory"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/core/usecases"
)

func TestNumberingService_SequentialAndIdempotent(t *testing.T) {
	svc := usecases.NewNumberingService(newMockStore())
	ctx := context.Background()

	ids := []string{"zone-a", "zone-b", "zone-c"}
	for i, id := range ids {
		want := fmt.Sprintf("Zone %d", i+1)
		if got := svc.ZoneLabel(ctx, "s1", id); got != want {
			t.Errorf("ZoneLabel(%s) = %q, want %q", id, got, want)
		}
	}

	// Repeated lookups return the same number.
	for i, id := range ids {
		want := fmt.Sprintf("Zone %d", i+1)
		if got := svc.ZoneLabel(ctx, "s1", id); got != want {
			t.Errorf("repeat ZoneLabel(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestNumberingService_EmptyID(t *testing.T) {
	store := newMockStore()
	svc := usecases.NewNumberingService(store)

	if got := svc.ZoneLabel(context.Background(), "s1", ""); got != "Zone" {
		t.Errorf("expected bare Zone, got %q", got)
	}
	if store.sets != 0 {
		t.Errorf("expected no writes, got %d", store.sets)
	}
}

func TestNumberingService_SessionsAreIndependent(t *testing.T) {
	svc := usecases.NewNumberingService(newMockStore())
	ctx := context.Background()

	svc.ZoneLabel(ctx, "s1", "zone-a")
	svc.ZoneLabel(ctx, "s1", "zone-b")

	if got := svc.ZoneLabel(ctx, "s2", "zone-b"); got != "Zone 1" {
		t.Errorf("expected Zone 1 in a fresh session, got %q", got)
	}
}

func TestNumberingService_PersistsMapFormat(t *testing.T) {
	store := newMockStore()
	svc := usecases.NewNumberingService(store)
	ctx := context.Background()

	svc.ZoneLabel(ctx, "", "zone-a")
	svc.ZoneLabel(ctx, "", "zone-b")

	raw, ok := store.data["gw_tower_index_map_v1"]
	if !ok {
		t.Fatal("expected number map under its session key")
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("stored map is not JSON: %v", err)
	}
	if m["zone-a"] != 1 || m["zone-b"] != 2 {
		t.Errorf("unexpected map %v", m)
	}
}

func TestNumberingService_ReadFailureDegrades(t *testing.T) {
	store := newMockStore()
	store.getFn = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("storage disabled")
	}
	svc := usecases.NewNumberingService(store)

	if got := svc.ZoneLabel(context.Background(), "s1", "abcdef1234"); got != "Zone abcdef" {
		t.Errorf("expected derived label, got %q", got)
	}
	if store.sets != 0 {
		t.Errorf("expected nothing persisted, got %d writes", store.sets)
	}
}

func TestNumberingService_CorruptMapDegrades(t *testing.T) {
	store := newMockStore()
	store.data[usecases.NumberMapKey("s1")] = "{not json"
	svc := usecases.NewNumberingService(store)

	if got := svc.ZoneLabel(context.Background(), "s1", "abcdef1234"); got != "Zone abcdef" {
		t.Errorf("expected derived label, got %q", got)
	}
	if store.data[usecases.NumberMapKey("s1")] != "{not json" {
		t.Error("corrupt map must not be overwritten")
	}
}

func TestNumberingService_WriteFailureStillNumbers(t *testing.T) {
	store := newMockStore()
	store.setFn = func(ctx context.Context, key, value string) error {
		return errors.New("quota exceeded")
	}
	svc := usecases.NewNumberingService(store)

	if got := svc.ZoneLabel(context.Background(), "s1", "zone-a"); got != "Zone 1" {
		t.Errorf("expected Zone 1, got %q", got)
	}
}

func TestNumberingService_GapsNeverDuplicate(t *testing.T) {
	store := newMockStore()
	// zone-b was lost from a map that once held three entries.
	store.data[usecases.NumberMapKey("s1")] = `{"zone-a":1,"zone-c":3}`
	svc := usecases.NewNumberingService(store)
	ctx := context.Background()

	if got := svc.ZoneLabel(ctx, "s1", "zone-c"); got != "Zone 3" {
		t.Errorf("existing number must be kept, got %q", got)
	}
	if got := svc.ZoneLabel(ctx, "s1", "zone-d"); got != "Zone 4" {
		t.Errorf("expected Zone 4, got %q", got)
	}
}

func TestNumberingService_ZoneNumber(t *testing.T) {
	svc := usecases.NewNumberingService(newMockStore())
	ctx := context.Background()

	if _, ok := svc.ZoneNumber(ctx, "s1", ""); ok {
		t.Error("expected no number for empty id")
	}
	n, ok := svc.ZoneNumber(ctx, "s1", "zone-a")
	if !ok || n != 1 {
		t.Errorf("expected 1, got %d (%v)", n, ok)
	}

	numbers, err := svc.Numbers(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(numbers) != 1 || numbers["zone-a"] != 1 {
		t.Errorf("unexpected numbers %v", numbers)
	}
}

func TestNumberingService_ConcurrentAssignmentIsUnique(t *testing.T) {
	svc := usecases.NewNumberingService(newMockStore())
	ctx := context.Background()

	const zones = 50
	var wg sync.WaitGroup
	got := make([]int, zones)
	for i := 0; i < zones; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = svc.ZoneNumber(ctx, "s1", fmt.Sprintf("zone-%d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, n := range got {
		if n < 1 || n > zones {
			t.Errorf("number %d out of range", n)
		}
		if seen[n] {
			t.Errorf("number %d assigned twice", n)
		}
		seen[n] = true
	}
}

func TestNumberingService_ReplicasSharingStoreNeverDuplicate(t *testing.T) {
	store := memory.New(0)
	replicas := []*usecases.NumberingService{
		usecases.NewNumberingService(store),
		usecases.NewNumberingService(store),
	}
	ctx := context.Background()

	const zones = 100
	var wg sync.WaitGroup
	got := make([]int, zones)
	for i := 0; i < zones; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = replicas[i%2].ZoneNumber(ctx, "s1", fmt.Sprintf("zone-%d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]string)
	for i, n := range got {
		id := fmt.Sprintf("zone-%d", i)
		if prev, dup := seen[n]; dup {
			t.Errorf("number %d given to %s and %s", n, prev, id)
		}
		seen[n] = id
	}

	// Each replica sees the numbers the other assigned.
	for i, n := range got {
		again, ok := replicas[(i+1)%2].ZoneNumber(ctx, "s1", fmt.Sprintf("zone-%d", i))
		if !ok || again != n {
			t.Errorf("zone-%d: expected %d from the other replica, got %d", i, n, again)
		}
	}

	stored, err := replicas[0].Numbers(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != zones {
		t.Errorf("expected %d stored numbers, got %d", zones, len(stored))
	}
}

// racingStore runs a competing writer between the read and the write of the
// first update, the way another replica would.
type racingStore struct {
	*memory.Store
	once  sync.Once
	other func()
}

func (r *racingStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	r.once.Do(r.other)
	return r.Store.Update(ctx, key, fn)
}

func TestNumberingService_InterleavedReplicasKeepNumbers(t *testing.T) {
	shared := memory.New(0)
	ctx := context.Background()
	replicaB := usecases.NewNumberingService(shared)

	var bLabel string
	store := &racingStore{Store: shared, other: func() {
		bLabel = replicaB.ZoneLabel(ctx, "s1", "zone-b")
	}}
	replicaA := usecases.NewNumberingService(store)

	aLabel := replicaA.ZoneLabel(ctx, "s1", "zone-a")
	if bLabel != "Zone 1" || aLabel != "Zone 2" {
		t.Errorf("expected zone-b=Zone 1 and zone-a=Zone 2, got %q and %q", bLabel, aLabel)
	}
	if got := replicaB.ZoneLabel(ctx, "s1", "zone-a"); got != "Zone 2" {
		t.Errorf("zone-a must keep its number, got %q", got)
	}
	if got := replicaA.ZoneLabel(ctx, "s1", "zone-b"); got != "Zone 1" {
		t.Errorf("zone-b must keep its number, got %q", got)
	}
}

type conflictStore struct {
	*mockStore
}

func (c conflictStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) error {
	return ports.ErrUpdateConflict
}

func TestNumberingService_UpdateConflictDegrades(t *testing.T) {
	svc := usecases.NewNumberingService(conflictStore{newMockStore()})

	if got := svc.ZoneLabel(context.Background(), "s1", "abcdef1234"); got != "Zone abcdef" {
		t.Errorf("expected derived label, got %q", got)
	}
}

func TestNumberingService_ManySessionsShareBoundedLocks(t *testing.T) {
	svc := usecases.NewNumberingService(newMockStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i)
			if got := svc.ZoneLabel(ctx, session, "zone-a"); got != "Zone 1" {
				t.Errorf("%s: expected Zone 1, got %q", session, got)
			}
		}(i)
	}
	wg.Wait()
}
