package coverage

import (
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/domain/intent"
)

var testTTLs = TTLs{Valid: 24 * time.Hour, LowCoverage: time.Hour}

func TestEvaluateThresholds(t *testing.T) {
	e := NewEvaluator(testTTLs)
	tests := []struct {
		name    string
		shared  any
		want    Level
		wantTTL time.Duration
	}{
		{"at valid threshold", int64(8), LevelValid, 24 * time.Hour},
		{"above valid", int32(20), LevelValid, 24 * time.Hour},
		{"low coverage upper", 7, LevelLowCoverage, time.Hour},
		{"low coverage lower", float64(4), LevelLowCoverage, time.Hour},
		{"insufficient", int64(3), LevelInsufficient, 0},
		{"missing column", nil, LevelInsufficient, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := map[string]any{"driver_a_id": "VER"}
			if tt.shared != nil {
				row[FieldSharedRaces] = tt.shared
			}
			got := e.Evaluate(intent.KindSeasonDriverVsDriver, []map[string]any{row})
			if got.Level != tt.want {
				t.Errorf("level = %s, want %s", got.Level, tt.want)
			}
			if got.TTL != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", got.TTL, tt.wantTTL)
			}
			if got.SharedEvents == nil {
				t.Error("expected shared events to be reported")
			}
		})
	}
}

func TestEvaluateZeroRows(t *testing.T) {
	got := NewEvaluator(testTTLs).Evaluate(intent.KindDriverRanking, nil)
	if got.Level != LevelInsufficient {
		t.Errorf("expected insufficient, got %s", got.Level)
	}
	if got.TTL != 0 {
		t.Errorf("insufficient results carry no ttl, got %v", got.TTL)
	}
}

func TestEvaluateRowCountKinds(t *testing.T) {
	rows := []map[string]any{{"position": 1}, {"position": 2}}
	got := NewEvaluator(testTTLs).Evaluate(intent.KindRaceResultsSummary, rows)
	if got.Level != LevelValid {
		t.Errorf("expected valid, got %s", got.Level)
	}
	if got.SharedEvents != nil {
		t.Errorf("row-count kinds report no shared events, got %d", *got.SharedEvents)
	}
}

func TestEvaluateMultiRowUsesMinimum(t *testing.T) {
	rows := []map[string]any{
		{FieldRacesConsidered: int64(22)},
		{FieldRacesConsidered: int64(5)},
		{FieldRacesConsidered: int64(18)},
	}
	got := NewEvaluator(testTTLs).Evaluate(intent.KindDriverMultiComparison, rows)
	if got.Level != LevelLowCoverage {
		t.Errorf("expected low_coverage from weakest driver, got %s", got.Level)
	}
	if got.SharedEvents == nil || *got.SharedEvents != 5 {
		t.Errorf("expected sample 5, got %v", got.SharedEvents)
	}
}

func TestEvaluateCoveragePercent(t *testing.T) {
	rows := []map[string]any{{FieldSharedRaces: int64(10), FieldCoveragePercent: 83.3}}
	got := NewEvaluator(testTTLs).Evaluate(intent.KindTeammateGapSummary, rows)
	if got.CoveragePercent == nil || *got.CoveragePercent != 83.3 {
		t.Errorf("expected coverage percent 83.3, got %v", got.CoveragePercent)
	}
	if got.TTLSeconds() != 86400 {
		t.Errorf("expected ttl 86400s, got %d", got.TTLSeconds())
	}
}

func TestEveryKindHasRule(t *testing.T) {
	for _, k := range intent.Kinds {
		if _, ok := rules[k]; !ok {
			t.Errorf("kind %s has no coverage rule", k)
		}
	}
	if RuleFor("unknown") != rowsRule {
		t.Error("unknown kinds fall back to the row count rule")
	}
}

func TestLevelCacheable(t *testing.T) {
	if !LevelValid.Cacheable() || !LevelLowCoverage.Cacheable() {
		t.Error("valid and low_coverage are cacheable")
	}
	if LevelInsufficient.Cacheable() {
		t.Error("insufficient is never cacheable")
	}
}
