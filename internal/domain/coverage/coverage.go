// Package coverage classifies how statistically reliable a result set is.
package coverage

import (
	"encoding/json"
	"math"
	"time"

	"github.com/Strob0t/paddock/internal/domain/intent"
)

// Level is the three-valued confidence classification.
type Level string

const (
	LevelValid        Level = "valid"
	LevelLowCoverage  Level = "low_coverage"
	LevelInsufficient Level = "insufficient"
)

// Cacheable reports whether results at this level may be stored.
func (l Level) Cacheable() bool {
	return l == LevelValid || l == LevelLowCoverage
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelValid, LevelLowCoverage, LevelInsufficient:
		return true
	}
	return false
}

// Rule maps a kind to the row column carrying its sample size and the
// thresholds applied to it. An empty Field means the row count is the sample.
type Rule struct {
	Field string `json:"field,omitempty"`
	Valid int    `json:"valid"`
	Low   int    `json:"low"`
}

// Column names shared by templates and rules.
const (
	FieldSharedRaces       = "shared_races"
	FieldSharedLaps        = "shared_laps"
	FieldRacesConsidered   = "races_considered"
	FieldSeasonsConsidered = "seasons_considered"
	FieldCoveragePercent   = "coverage_percent"
)

var (
	pairRule   = Rule{Field: FieldSharedRaces, Valid: 8, Low: 4}
	seasonRule = Rule{Field: FieldRacesConsidered, Valid: 8, Low: 4}
	careerRule = Rule{Field: FieldSeasonsConsidered, Valid: 3, Low: 1}
	rowsRule   = Rule{Valid: 1, Low: 1}
)

// rules is resolved once per classification; every kind has an entry.
var rules = map[intent.Kind]Rule{
	intent.KindSeasonDriverVsDriver:        pairRule,
	intent.KindCrossTeamTrackComparison:    {Field: FieldSharedLaps, Valid: 20, Low: 10},
	intent.KindTeammateGapSummary:          pairRule,
	intent.KindTeammateGapDualComparison:   pairRule,
	intent.KindDriverHeadToHeadCount:       pairRule,
	intent.KindDriverSeasonSummary:         seasonRule,
	intent.KindDriverCareerSummary:         careerRule,
	intent.KindDriverProfileSummary:        rowsRule,
	intent.KindDriverTrendSummary:          {Field: FieldSeasonsConsidered, Valid: 3, Low: 2},
	intent.KindDriverPerformanceVector:     seasonRule,
	intent.KindDriverPoleCount:             seasonRule,
	intent.KindDriverTrackPerformance:      {Field: FieldRacesConsidered, Valid: 3, Low: 1},
	intent.KindDriverMultiComparison:       seasonRule,
	intent.KindDriverMatchupLookup:         pairRule,
	intent.KindDriverVsDriverComprehensive: pairRule,
	intent.KindDriverRanking:               rowsRule,
	intent.KindTrackFastestDrivers:         rowsRule,
	intent.KindRaceResultsSummary:          rowsRule,
	intent.KindQualifyingResultsSummary:    rowsRule,
}

// RuleFor returns the rule for kind, falling back to the row-count rule.
func RuleFor(kind intent.Kind) Rule {
	if r, ok := rules[kind]; ok {
		return r
	}
	return rowsRule
}

// Rules returns a copy of the full table.
func Rules() map[intent.Kind]Rule {
	out := make(map[intent.Kind]Rule, len(rules))
	for k, r := range rules {
		out[k] = r
	}
	return out
}

// Classify maps a sample size to a level under r.
func (r Rule) Classify(sample int) Level {
	switch {
	case sample >= r.Valid:
		return LevelValid
	case sample >= r.Low:
		return LevelLowCoverage
	default:
		return LevelInsufficient
	}
}

// Result is the classification of one result set. It is never persisted on
// its own, only embedded into a cache entry.
type Result struct {
	Level           Level         `json:"confidence_level"`
	CoveragePercent *float64      `json:"coverage_percent,omitempty"`
	SharedEvents    *int          `json:"shared_events,omitempty"`
	TTL             time.Duration `json:"-"`
}

// TTLSeconds returns the TTL in whole seconds.
func (r Result) TTLSeconds() int64 { return int64(r.TTL / time.Second) }

// TTLs holds the cache lifetimes per cacheable level.
type TTLs struct {
	Valid       time.Duration
	LowCoverage time.Duration
}

// Evaluator classifies result rows per kind.
type Evaluator struct {
	ttls TTLs
}

// NewEvaluator creates an Evaluator assigning the given TTLs.
func NewEvaluator(ttls TTLs) *Evaluator {
	return &Evaluator{ttls: ttls}
}

// Evaluate classifies rows for kind. Zero rows is always insufficient. For
// multi-row results the smallest per-row sample decides.
func (e *Evaluator) Evaluate(kind intent.Kind, rows []map[string]any) Result {
	if len(rows) == 0 {
		return Result{Level: LevelInsufficient}
	}

	rule := RuleFor(kind)
	sample := len(rows)
	if rule.Field != "" {
		sample = math.MaxInt
		for _, row := range rows {
			n, ok := toInt(row[rule.Field])
			if !ok {
				n = 0
			}
			sample = min(sample, n)
		}
	}

	res := Result{Level: rule.Classify(sample)}
	if rule.Field != "" {
		res.SharedEvents = &sample
	}
	if pct, ok := toFloat(rows[0][FieldCoveragePercent]); ok {
		res.CoveragePercent = &pct
	}

	switch res.Level {
	case LevelValid:
		res.TTL = e.ttls.Valid
	case LevelLowCoverage:
		res.TTL = e.ttls.LowCoverage
	}
	return res
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
