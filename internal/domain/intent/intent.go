// Package intent defines the structured query intents accepted by the
// pipeline. Each supported query kind is its own variant type; the Intent
// interface is the sum over all of them.
package intent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Strob0t/paddock/internal/domain"
)

// Kind discriminates intent variants.
type Kind string

const (
	KindSeasonDriverVsDriver        Kind = "season_driver_vs_driver"
	KindCrossTeamTrackComparison    Kind = "cross_team_track_scoped_driver_comparison"
	KindTeammateGapSummary          Kind = "teammate_gap_summary_season"
	KindTeammateGapDualComparison   Kind = "teammate_gap_dual_comparison"
	KindDriverHeadToHeadCount       Kind = "driver_head_to_head_count"
	KindDriverSeasonSummary         Kind = "driver_season_summary"
	KindDriverCareerSummary         Kind = "driver_career_summary"
	KindDriverProfileSummary        Kind = "driver_profile_summary"
	KindDriverTrendSummary          Kind = "driver_trend_summary"
	KindDriverPerformanceVector     Kind = "driver_performance_vector"
	KindDriverPoleCount             Kind = "driver_pole_count"
	KindDriverTrackPerformance      Kind = "driver_track_performance"
	KindDriverMultiComparison       Kind = "driver_multi_comparison"
	KindDriverMatchupLookup         Kind = "driver_matchup_lookup"
	KindDriverVsDriverComprehensive Kind = "driver_vs_driver_comprehensive"
	KindDriverRanking               Kind = "driver_ranking"
	KindTrackFastestDrivers         Kind = "track_fastest_drivers"
	KindRaceResultsSummary          Kind = "race_results_summary"
	KindQualifyingResultsSummary    Kind = "qualifying_results_summary"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindSeasonDriverVsDriver,
	KindCrossTeamTrackComparison,
	KindTeammateGapSummary,
	KindTeammateGapDualComparison,
	KindDriverHeadToHeadCount,
	KindDriverSeasonSummary,
	KindDriverCareerSummary,
	KindDriverProfileSummary,
	KindDriverTrendSummary,
	KindDriverPerformanceVector,
	KindDriverPoleCount,
	KindDriverTrackPerformance,
	KindDriverMultiComparison,
	KindDriverMatchupLookup,
	KindDriverVsDriverComprehensive,
	KindDriverRanking,
	KindTrackFastestDrivers,
	KindRaceResultsSummary,
	KindQualifyingResultsSummary,
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Intent is a structured, validated representation of a statistics question.
// Implementations are the variant types in this package; their Kind never
// changes after construction.
type Intent interface {
	Kind() Kind
	// Validate checks required and optional fields against the kind's rules.
	Validate() error
	// Identities returns the free-text or canonical identity references.
	Identities() Identities
	// WithIdentities returns a copy with identity fields replaced.
	WithIdentities(Identities) Intent
	// CanonicalParams returns the cache-relevant parameters with defaults applied.
	CanonicalParams() map[string]any
}

// Identities holds the identity references carried by an intent. Drivers is
// ordered as the variant declares its driver fields; Track is empty when the
// kind has no track.
type Identities struct {
	Drivers []string
	Track   string
}

// TeammateKinds require both drivers to share a team in the intent's season.
var TeammateKinds = []Kind{KindTeammateGapSummary, KindTeammateGapDualComparison}

// RequiresTeammates reports whether k needs teammate pair resolution.
func RequiresTeammates(k Kind) bool {
	return slices.Contains(TeammateKinds, k)
}

// Seasoned is implemented by intents scoped to a single season.
type Seasoned interface {
	SeasonYear() int
}

const (
	minSeason = 1950
	maxSeason = 2100
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func checkSeason(field string, season int) error {
	if season == 0 {
		return invalid("%s is required", field)
	}
	if season < minSeason || season > maxSeason {
		return invalid("%s must be between %d and %d", field, minSeason, maxSeason)
	}
	return nil
}

func checkRef(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

func checkDistinct(a, b string) error {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return invalid("driver_a_id and driver_b_id must differ")
	}
	return nil
}

func checkLimit(limit int) error {
	if limit != 0 && (limit < 1 || limit > MaxLimit) {
		return invalid("limit must be between 1 and %d", MaxLimit)
	}
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
