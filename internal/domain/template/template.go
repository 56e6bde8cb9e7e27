// Package template names the approved SQL templates and selects one for an intent.
package template

import (
	"fmt"

	"github.com/Strob0t/paddock/internal/domain/intent"
)

// ID identifies an approved, versioned SQL template.
type ID string

const (
	SeasonDriverVsDriverNormalized ID = "season_driver_vs_driver_normalized_v1"
	SeasonDriverVsDriverRaw        ID = "season_driver_vs_driver_raw_v1"
	CrossTeamTrackComparison       ID = "cross_team_track_scoped_driver_comparison_v1"
	TeammateGapSummary             ID = "teammate_gap_summary_season_v1"
	TeammateGapDualComparison      ID = "teammate_gap_dual_comparison_v1"
	DriverHeadToHeadCount          ID = "driver_head_to_head_count_v1"
	DriverHeadToHeadConditional    ID = "driver_head_to_head_count_conditional_v1"
	DriverSeasonSummary            ID = "driver_season_summary_v1"
	DriverCareerSummary            ID = "driver_career_summary_v1"
	DriverProfileSummary           ID = "driver_profile_summary_v1"
	DriverTrendSummary             ID = "driver_trend_summary_v1"
	DriverPerformanceVector        ID = "driver_performance_vector_v1"
	DriverPoleCount                ID = "driver_pole_count_v1"
	DriverTrackPerformance         ID = "driver_track_performance_v1"
	DriverMultiComparison          ID = "driver_multi_comparison_v1"
	DriverMatchupLookup            ID = "driver_matchup_lookup_v1"
	DriverVsDriverComprehensive    ID = "driver_vs_driver_comprehensive_v1"
	DriverRanking                  ID = "driver_ranking_v1"
	TrackFastestDrivers            ID = "track_fastest_drivers_v1"
	RaceResultsSummary             ID = "race_results_summary_v1"
	QualifyingResultsSummary       ID = "qualifying_results_summary_v1"
)

// static maps kinds with exactly one template.
var static = map[intent.Kind]ID{
	intent.KindCrossTeamTrackComparison:    CrossTeamTrackComparison,
	intent.KindTeammateGapSummary:          TeammateGapSummary,
	intent.KindTeammateGapDualComparison:   TeammateGapDualComparison,
	intent.KindDriverSeasonSummary:         DriverSeasonSummary,
	intent.KindDriverCareerSummary:         DriverCareerSummary,
	intent.KindDriverProfileSummary:        DriverProfileSummary,
	intent.KindDriverTrendSummary:          DriverTrendSummary,
	intent.KindDriverPerformanceVector:     DriverPerformanceVector,
	intent.KindDriverPoleCount:             DriverPoleCount,
	intent.KindDriverTrackPerformance:      DriverTrackPerformance,
	intent.KindDriverMultiComparison:       DriverMultiComparison,
	intent.KindDriverMatchupLookup:         DriverMatchupLookup,
	intent.KindDriverVsDriverComprehensive: DriverVsDriverComprehensive,
	intent.KindDriverRanking:               DriverRanking,
	intent.KindTrackFastestDrivers:         TrackFastestDrivers,
	intent.KindRaceResultsSummary:          RaceResultsSummary,
	intent.KindQualifyingResultsSummary:    QualifyingResultsSummary,
}

// All returns every approved template id. Startup preloading uses it so a
// missing template fails the process before any request is served.
func All() []ID {
	ids := []ID{
		SeasonDriverVsDriverNormalized,
		SeasonDriverVsDriverRaw,
		DriverHeadToHeadCount,
		DriverHeadToHeadConditional,
	}
	for _, k := range intent.Kinds {
		if id, ok := static[k]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Candidates lists the templates Select may return for kind.
func Candidates(kind intent.Kind) []ID {
	switch kind {
	case intent.KindSeasonDriverVsDriver:
		return []ID{SeasonDriverVsDriverNormalized, SeasonDriverVsDriverRaw}
	case intent.KindDriverHeadToHeadCount:
		return []ID{DriverHeadToHeadCount, DriverHeadToHeadConditional}
	}
	if id, ok := static[kind]; ok {
		return []ID{id}
	}
	return nil
}

// Select returns the template for i. An error means the intent's kind has
// no template, which is a programming error and must not be retried.
func Select(i intent.Intent) (ID, error) {
	switch v := i.(type) {
	case *intent.SeasonDriverVsDriver:
		if v.EffectiveNormalization() == intent.NormalizationNone {
			return SeasonDriverVsDriverRaw, nil
		}
		return SeasonDriverVsDriverNormalized, nil
	case *intent.DriverHeadToHeadCount:
		if v.Active() {
			return DriverHeadToHeadConditional, nil
		}
		return DriverHeadToHeadCount, nil
	case nil:
		return "", fmt.Errorf("select template: nil intent")
	}
	if id, ok := static[i.Kind()]; ok {
		return id, nil
	}
	return "", fmt.Errorf("select template: no template for kind %q", i.Kind())
}
