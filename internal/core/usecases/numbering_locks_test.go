package usecases

import (
	"fmt"
	"sync"
	"testing"
)

func TestNumberingService_LocksAreBoundedAcrossSessions(t *testing.T) {
	svc := NewNumberingService(nil)

	distinct := make(map[*sync.Mutex]struct{})
	for i := 0; i < 100000; i++ {
		distinct[svc.lockFor(fmt.Sprintf("session-%d", i))] = struct{}{}
	}
	if len(distinct) > lockStripes {
		t.Errorf("expected at most %d locks, got %d", lockStripes, len(distinct))
	}
	if svc.lockFor("same") != svc.lockFor("same") {
		t.Error("a session must always map to the same lock")
	}
}
