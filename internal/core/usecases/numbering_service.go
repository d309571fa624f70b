package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/maphash"
	"log/slog"
	"strconv"
	"sync"

	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/pkg/metrics"
)

// lockStripes bounds the mutexes guarding stores without atomic updates.
const lockStripes = 64

// NumberingService assigns each zone a small sequence number, stable for
// the lifetime of a session. Numbers are never reassigned. Stores that
// implement ports.AtomicUpdater keep that guarantee across processes;
// otherwise it holds within this process only.
type NumberingService struct {
	store ports.KeyValueStore
	seed  maphash.Seed
	locks [lockStripes]sync.Mutex
}

// NewNumberingService creates a new NumberingService.
func NewNumberingService(store ports.KeyValueStore) *NumberingService {
	return &NumberingService{store: store, seed: maphash.MakeSeed()}
}

// ZoneLabel returns "Zone {n}" for zoneID, assigning the next free number on
// first sight. On storage failure it returns a label derived from the id and
// persists nothing.
func (s *NumberingService) ZoneLabel(ctx context.Context, sessionID, zoneID string) string {
	if zoneID == "" {
		return "Zone"
	}
	n, ok := s.ZoneNumber(ctx, sessionID, zoneID)
	if !ok {
		return "Zone " + prefix(zoneID, 6)
	}
	return "Zone " + strconv.Itoa(n)
}

// ZoneNumber returns the number of zoneID in the session. ok is false for an
// empty id or when the stored map cannot be read.
func (s *NumberingService) ZoneNumber(ctx context.Context, sessionID, zoneID string) (int, bool) {
	if zoneID == "" {
		return 0, false
	}

	var (
		n        int
		assigned bool
	)
	assign := func(raw string, found bool) (string, bool, error) {
		n, assigned = 0, false
		numbers, err := decodeNumbers(raw, found)
		if err != nil {
			return "", false, err
		}
		if existing, ok := numbers[zoneID]; ok {
			n = existing
			return "", false, nil
		}
		n = nextNumber(numbers)
		numbers[zoneID] = n
		assigned = true
		data, err := json.Marshal(numbers)
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}

	key := NumberMapKey(sessionID)
	var err error
	if u, ok := s.store.(ports.AtomicUpdater); ok {
		err = u.Update(ctx, key, assign)
	} else {
		err = s.updateLocked(ctx, sessionID, key, assign)
	}

	switch {
	case err == nil:
	case errors.Is(err, ports.ErrWriteFailed) && n > 0:
		slog.Debug("zone number map write failed", "session_id", sessionID, "error", err)
	default:
		slog.Debug("zone number map unreadable", "session_id", sessionID, "error", err)
		metrics.ZoneNumberFallbacks.Inc()
		return 0, false
	}
	if assigned {
		metrics.ZoneNumbersAssigned.Inc()
	}
	return n, true
}

// Numbers returns a copy of the session's zone-number map.
func (s *NumberingService) Numbers(ctx context.Context, sessionID string) (map[string]int, error) {
	raw, err := s.store.Get(ctx, NumberMapKey(sessionID))
	found := err == nil
	if errors.Is(err, ports.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return decodeNumbers(raw, found)
}

// updateLocked is the read-modify-write for stores without atomic updates.
// Sessions share a fixed set of striped locks.
func (s *NumberingService) updateLocked(ctx context.Context, sessionID, key string, fn ports.UpdateFunc) error {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	raw, err := s.store.Get(ctx, key)
	found := err == nil
	if errors.Is(err, ports.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return err
	}

	next, write, err := fn(raw, found)
	if err != nil || !write {
		return err
	}
	if err := s.store.Set(ctx, key, next); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrWriteFailed, err)
	}
	return nil
}

func (s *NumberingService) lockFor(sessionID string) *sync.Mutex {
	return &s.locks[maphash.String(s.seed, sessionID)%lockStripes]
}

func decodeNumbers(raw string, found bool) (map[string]int, error) {
	numbers := make(map[string]int)
	if !found || raw == "" {
		return numbers, nil
	}
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil, err
	}
	if numbers == nil {
		// stored literal "null"
		numbers = make(map[string]int)
	}
	return numbers, nil
}

// nextNumber returns one past the highest assigned number. For an intact map
// this equals len+1; a map that lost entries cannot yield a duplicate.
func nextNumber(numbers map[string]int) int {
	highest := 0
	for _, n := range numbers {
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
