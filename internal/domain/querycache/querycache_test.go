package querycache

import (
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/domain/intent"
)

func TestComputeKeyOrderIndependent(t *testing.T) {
	a := map[string]any{"season": 2024, "driver_a_id": "max_verstappen", "driver_b_id": "lando_norris"}
	b := map[string]any{}
	b["driver_b_id"] = "lando_norris"
	b["driver_a_id"] = "max_verstappen"
	b["season"] = 2024

	ka, err := ComputeKey(intent.KindSeasonDriverVsDriver, a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := ComputeKey(intent.KindSeasonDriverVsDriver, b)
	if err != nil {
		t.Fatal(err)
	}
	if ka != kb {
		t.Errorf("keys differ: %s vs %s", ka, kb)
	}
	if len(ka) != 64 {
		t.Errorf("key length = %d", len(ka))
	}
}

func TestComputeKeyDistinguishesKindAndParams(t *testing.T) {
	p := map[string]any{"season": 2024, "driver_a_id": "a", "driver_b_id": "b"}
	k1, _ := ComputeKey(intent.KindSeasonDriverVsDriver, p)
	k2, _ := ComputeKey(intent.KindTeammateGapSummary, p)
	if k1 == k2 {
		t.Error("kind must be part of the key")
	}
	k3, _ := ComputeKey(intent.KindSeasonDriverVsDriver, map[string]any{"season": 2023, "driver_a_id": "a", "driver_b_id": "b"})
	if k1 == k3 {
		t.Error("params must be part of the key")
	}
}

func TestComputeKeyFromIntents(t *testing.T) {
	x := &intent.DriverMultiComparison{Season: 2024, DriverIDs: []string{"a", "b", "c"}}
	y := &intent.DriverMultiComparison{Season: 2024, DriverIDs: []string{"c", "a", "b"}, Metric: intent.ComparisonMetric("avg_true_pace")}
	kx, _ := ComputeKey(x.Kind(), x.CanonicalParams())
	ky, _ := ComputeKey(y.Kind(), y.CanonicalParams())
	if kx != ky {
		t.Error("equivalent multi comparisons must share a key")
	}
}

func TestEntryUsable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	v := Versions{Methodology: "2024.1", Schema: "1"}

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"current no expiry", Entry{MethodologyVersion: "2024.1", SchemaVersion: "1"}, true},
		{"current future expiry", Entry{MethodologyVersion: "2024.1", SchemaVersion: "1", ExpiresAt: &future}, true},
		{"expired", Entry{MethodologyVersion: "2024.1", SchemaVersion: "1", ExpiresAt: &past}, false},
		{"expires now", Entry{MethodologyVersion: "2024.1", SchemaVersion: "1", ExpiresAt: &now}, false},
		{"stale methodology", Entry{MethodologyVersion: "2023.2", SchemaVersion: "1"}, false},
		{"stale schema", Entry{MethodologyVersion: "2024.1", SchemaVersion: "0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Usable(now, v); got != tt.want {
				t.Errorf("Usable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLastUsed(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hit := created.Add(time.Hour)
	e := Entry{CreatedAt: created}
	if !e.LastUsed().Equal(created) {
		t.Error("expected created_at without hits")
	}
	e.LastHitAt = &hit
	if !e.LastUsed().Equal(hit) {
		t.Error("expected last_hit_at")
	}
}

func TestReportRemoved(t *testing.T) {
	r := MaintenanceReport{StaleVersionsRemoved: 2, ExpiredPurged: 3, LRUEvicted: 5}
	if r.Removed() != 10 {
		t.Errorf("Removed = %d", r.Removed())
	}
}
