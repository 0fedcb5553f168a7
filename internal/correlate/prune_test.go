package correlate

import (
	"testing"

	"github.com/ghalamif/mlatflow/internal/domain"
)

func TestPruneRemovesOnlyStalePayloads(t *testing.T) {
	idx := NewIndex(DefaultParams())
	idx.Insert(1, domain.NewStamp("a", 100, 0.0))  // 5.01s behind
	idx.Insert(2, domain.NewStamp("a", 100, 0.02)) // 4.99s behind
	idx.Insert(3, domain.NewStamp("a", 90, 0.0))
	idx.Insert(3, domain.NewStamp("b", 104, 0.0)) // newest keeps it alive
	idx.Insert(4, domain.NewStamp("a", 105, 0.01))

	removed := idx.Prune()
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("expected only payload 1 removed, got %v", removed)
	}
	for _, p := range []domain.Payload{2, 3, 4} {
		if idx.Reports(p) == nil {
			t.Fatalf("payload %d should be retained", p)
		}
	}
	if idx.Reports(1) != nil {
		t.Fatalf("payload 1 should be gone")
	}
}

func TestPruneOnEmptyIndex(t *testing.T) {
	idx := NewIndex(DefaultParams())
	if removed := idx.Prune(); len(removed) != 0 {
		t.Fatalf("expected nothing to prune, got %v", removed)
	}
}

func TestPruneClockFollowsTrafficNotWallTime(t *testing.T) {
	idx := NewIndex(DefaultParams())
	idx.Insert(1, domain.NewStamp("a", 100, 0.0))
	if removed := idx.Prune(); len(removed) != 0 {
		t.Fatalf("a lone payload is never stale against itself")
	}
	idx.Insert(2, domain.NewStamp("b", 200, 0.0))
	if removed := idx.Prune(); len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("expected payload 1 pruned once traffic moved on, got %v", removed)
	}
}
