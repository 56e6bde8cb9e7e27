package query

import (
	"fmt"

	"github.com/Strob0t/paddock/internal/domain/intent"
)

// BuildParams returns the positional bind values for the template selected
// for r. Order and types follow each template's placeholder contract; the
// builder does not inspect template text.
func BuildParams(r intent.Resolved) ([]any, error) {
	switch v := r.Intent().(type) {
	case *intent.SeasonDriverVsDriver:
		return []any{v.Season, v.DriverAID, v.DriverBID}, nil
	case *intent.CrossTeamTrackComparison:
		return []any{v.Season, v.TrackID, v.DriverAID, v.DriverBID}, nil
	case *intent.TeammateGapSummary:
		return []any{v.Season, v.DriverAID, v.DriverBID}, nil
	case *intent.TeammateGapDualComparison:
		return []any{v.Season, v.DriverAID, v.DriverBID}, nil
	case *intent.DriverHeadToHeadCount:
		base := []any{v.Season, v.DriverAID, v.DriverBID, string(v.EffectiveMetric())}
		if !v.Active() {
			return base, nil
		}
		return append(base,
			nullString(v.Session),
			nullString(v.TrackType),
			nullString(v.Weather),
			nullInts(v.Rounds),
			nullString(v.DateFrom),
			nullString(v.DateTo),
			v.ExcludeDNFs,
		), nil
	case *intent.DriverSeasonSummary:
		return []any{v.Season, v.DriverID}, nil
	case *intent.DriverCareerSummary:
		return []any{v.DriverID}, nil
	case *intent.DriverProfileSummary:
		return []any{v.DriverID}, nil
	case *intent.DriverTrendSummary:
		return []any{v.DriverID, v.StartSeason, v.EndSeason}, nil
	case *intent.DriverPerformanceVector:
		return []any{v.Season, v.DriverID}, nil
	case *intent.DriverPoleCount:
		return []any{v.Season, v.DriverID}, nil
	case *intent.DriverTrackPerformance:
		var season any
		if v.Season != 0 {
			season = v.Season
		}
		return []any{v.DriverID, v.TrackID, season}, nil
	case *intent.DriverMultiComparison:
		return []any{v.Season, append([]string(nil), v.DriverIDs...), string(v.EffectiveMetric())}, nil
	case *intent.DriverMatchupLookup:
		return []any{v.DriverAID, v.DriverBID, string(v.EffectiveMetric())}, nil
	case *intent.DriverVsDriverComprehensive:
		return []any{v.Season, v.DriverAID, v.DriverBID}, nil
	case *intent.DriverRanking:
		return []any{v.Season, v.EffectiveLimit()}, nil
	case *intent.TrackFastestDrivers:
		return []any{v.Season, v.TrackID, v.EffectiveLimit()}, nil
	case *intent.RaceResultsSummary:
		return []any{v.Season, v.TrackID}, nil
	case *intent.QualifyingResultsSummary:
		return []any{v.Season, v.TrackID}, nil
	}
	return nil, fmt.Errorf("build params: unsupported intent %T", r.Intent())
}

// ParamTypes describes bind values by Go type only, for traces that must
// never carry raw values.
func ParamTypes(params []any) []string {
	out := make([]string, len(params))
	for i, p := range params {
		if p == nil {
			out[i] = "null"
			continue
		}
		out[i] = fmt.Sprintf("%T", p)
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInts(v []int) any {
	if len(v) == 0 {
		return nil
	}
	return append([]int(nil), v...)
}
