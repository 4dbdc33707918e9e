package runs

import (
	"testing"
	"time"

	"nludevops/internal/domain"
)

func TestRegistryTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute)
	r.now = func() time.Time { return now }

	r.Put(domain.Run{RunID: "a", StartedAt: now})
	if _, ok := r.Get("a"); !ok {
		t.Fatalf("expected run a to be present")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := r.Get("a"); ok {
		t.Fatalf("expected run a to be expired")
	}

	r.Put(domain.Run{RunID: "b", StartedAt: now})
	if len(r.data) != 1 {
		t.Fatalf("expired runs should be evicted on put, have %d entries", len(r.data))
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour)
	r.Put(domain.Run{RunID: "old", StartedAt: base})
	r.Put(domain.Run{RunID: "new", StartedAt: base.Add(time.Minute)})

	got := r.List()
	if len(got) != 2 || got[0].RunID != "new" || got[1].RunID != "old" {
		t.Fatalf("list order=%v, want [new old]", got)
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Put(domain.Run{RunID: "a", Outcomes: []domain.Outcome{{Index: 0}}})

	got, _ := r.Get("a")
	got.Outcomes[0].Error = "mutated"

	again, _ := r.Get("a")
	if again.Outcomes[0].Error != "" {
		t.Fatalf("registry state was mutated through a returned run")
	}
}
