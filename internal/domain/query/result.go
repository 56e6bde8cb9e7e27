package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Options are the per-request pipeline switches.
type Options struct {
	ForceRefresh bool `json:"force_refresh,omitempty"`
	Debug        bool `json:"debug,omitempty"`
}

// BypassCache reports whether the cache read must be skipped.
func (o Options) BypassCache() bool { return o.ForceRefresh || o.Debug }

// Result is the pipeline's success value. Callers treat it as read-only.
type Result struct {
	Intent         intent.Envelope `json:"intent"`
	Result         Payload         `json:"result"`
	Interpretation Interpretation  `json:"interpretation"`
	Metadata       Metadata        `json:"metadata"`
}

// Payload carries the shaped rows under a result type. Single-row kinds
// carry one object, list kinds an array.
type Payload struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Interpretation describes how far the numbers can be trusted.
type Interpretation struct {
	Summary            string         `json:"summary"`
	ConfidenceLevel    coverage.Level `json:"confidence_level"`
	CoveragePercent    *float64       `json:"coverage_percent,omitempty"`
	SharedEvents       *int           `json:"shared_events,omitempty"`
	MethodologyVersion string         `json:"methodology_version"`
	Partial            bool           `json:"partial,omitempty"`
	Missing            []string       `json:"missing,omitempty"`
}

// Metadata records provenance.
type Metadata struct {
	TemplateID string     `json:"template_id"`
	DataScope  string     `json:"data_scope"`
	RowCount   int        `json:"row_count"`
	Cached     bool       `json:"cached"`
	CachedAt   *time.Time `json:"cached_at,omitempty"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// Replayed returns a copy of r marked as served from the cache.
func (r *Result) Replayed(cachedAt time.Time) *Result {
	c := *r
	c.Metadata.Cached = true
	at := cachedAt.UTC()
	c.Metadata.CachedAt = &at
	if r.Interpretation.Missing != nil {
		c.Interpretation.Missing = append([]string(nil), r.Interpretation.Missing...)
	}
	return &c
}

// Shape is the result type and cardinality of one kind.
type Shape struct {
	Type  string
	Multi bool
}

var shapes = map[intent.Kind]Shape{
	intent.KindSeasonDriverVsDriver:        {Type: "driver_comparison"},
	intent.KindCrossTeamTrackComparison:    {Type: "track_comparison"},
	intent.KindTeammateGapSummary:          {Type: "teammate_gap"},
	intent.KindTeammateGapDualComparison:   {Type: "teammate_gap_dual"},
	intent.KindDriverHeadToHeadCount:       {Type: "head_to_head"},
	intent.KindDriverSeasonSummary:         {Type: "driver_season_summary"},
	intent.KindDriverCareerSummary:         {Type: "driver_career_summary"},
	intent.KindDriverProfileSummary:        {Type: "driver_profile"},
	intent.KindDriverTrendSummary:          {Type: "driver_trend", Multi: true},
	intent.KindDriverPerformanceVector:     {Type: "performance_vector"},
	intent.KindDriverPoleCount:             {Type: "pole_count"},
	intent.KindDriverTrackPerformance:      {Type: "driver_track_performance"},
	intent.KindDriverMultiComparison:       {Type: "multi_driver_comparison", Multi: true},
	intent.KindDriverMatchupLookup:         {Type: "matchup"},
	intent.KindDriverVsDriverComprehensive: {Type: "driver_comparison_comprehensive"},
	intent.KindDriverRanking:               {Type: "driver_ranking", Multi: true},
	intent.KindTrackFastestDrivers:         {Type: "track_ranking", Multi: true},
	intent.KindRaceResultsSummary:          {Type: "race_results", Multi: true},
	intent.KindQualifyingResultsSummary:    {Type: "qualifying_results", Multi: true},
}

// ShapeFor returns the shape of kind.
func ShapeFor(kind intent.Kind) Shape {
	if s, ok := shapes[kind]; ok {
		return s
	}
	return Shape{Type: string(kind), Multi: true}
}

// FormatPayload shapes rows for kind. Columns used only for classification
// stay in the payload; they are part of the result.
func FormatPayload(kind intent.Kind, rows []Row) Payload {
	s := ShapeFor(kind)
	if !s.Multi {
		var first Row
		if len(rows) > 0 {
			first = rows[0]
		}
		return Payload{Type: s.Type, Payload: first}
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return Payload{Type: s.Type, Payload: out}
}

// DataScope renders the slice of data a query covered, e.g.
// "season 2024 · monza".
func DataScope(i intent.Intent) string {
	p := i.CanonicalParams()
	var parts []string
	if s, ok := p["season"]; ok {
		parts = append(parts, fmt.Sprintf("season %v", s))
	} else if start, ok := p["start_season"]; ok {
		parts = append(parts, fmt.Sprintf("seasons %v-%v", start, p["end_season"]))
	} else {
		parts = append(parts, "career")
	}
	if t, ok := p["track_id"].(string); ok && t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " · ")
}

// Summarize produces the one-line interpretation summary.
func Summarize(i intent.Intent, level coverage.Level, shared *int) string {
	subject := strings.ReplaceAll(string(i.Kind()), "_", " ")
	ids := i.Identities()
	if len(ids.Drivers) > 0 {
		subject += " for " + strings.Join(ids.Drivers, ", ")
	}
	var sample string
	if shared != nil {
		sample = " from " + strconv.Itoa(*shared) + " events"
	}
	return fmt.Sprintf("%s (%s)%s, %s", subject, DataScope(i), sample, strings.ReplaceAll(string(level), "_", " "))
}
