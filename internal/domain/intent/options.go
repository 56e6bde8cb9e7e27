package intent

import (
	"slices"
	"time"
)

// Normalization selects how pace comparisons are scaled.
type Normalization string

const (
	NormalizationSessionMedian Normalization = "session_median_percent"
	NormalizationNone          Normalization = "none"
)

// orDefault returns the effective normalization; unset means session median.
func (n Normalization) orDefault() Normalization {
	if n == "" {
		return NormalizationSessionMedian
	}
	return n
}

func (n Normalization) validate() error {
	switch n {
	case "", NormalizationSessionMedian, NormalizationNone:
		return nil
	}
	return invalid("normalization must be session_median_percent or none")
}

// H2HMetric is the per-event comparison used by head-to-head counts.
type H2HMetric string

const (
	H2HQualifyingPosition H2HMetric = "qualifying_position"
	H2HRaceFinish         H2HMetric = "race_finish_position"
)

func (m H2HMetric) orDefault() H2HMetric {
	if m == "" {
		return H2HQualifyingPosition
	}
	return m
}

func (m H2HMetric) validate() error {
	switch m {
	case "", H2HQualifyingPosition, H2HRaceFinish:
		return nil
	}
	return invalid("h2h_metric must be qualifying_position or race_finish_position")
}

// ComparisonMetric is the season metric compared across several drivers.
type ComparisonMetric string

const (
	MetricAvgTruePace    ComparisonMetric = "avg_true_pace"
	MetricQualifyingPace ComparisonMetric = "qualifying_pace"
	MetricPoints         ComparisonMetric = "points"
)

func (m ComparisonMetric) orDefault() ComparisonMetric {
	if m == "" {
		return MetricAvgTruePace
	}
	return m
}

func (m ComparisonMetric) validate() error {
	switch m {
	case "", MetricAvgTruePace, MetricQualifyingPace, MetricPoints:
		return nil
	}
	return invalid("comparison_metric must be avg_true_pace, qualifying_pace or points")
}

// DefaultLimit and MaxLimit bound list-returning kinds.
const (
	DefaultLimit = 10
	MaxLimit     = 25
)

func limitOrDefault(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return limit
}

// MaxRound bounds round filters.
const MaxRound = 30

// DateLayout is the accepted date format for date range filters.
const DateLayout = "2006-01-02"

// HeadToHeadFilters are the optional conditions a head-to-head count may apply.
type HeadToHeadFilters struct {
	Session     string `json:"session,omitempty"`    // race | qualifying | sprint
	TrackType   string `json:"track_type,omitempty"` // street | permanent
	Weather     string `json:"weather,omitempty"`    // dry | wet | mixed
	Rounds      []int  `json:"rounds,omitempty"`
	DateFrom    string `json:"date_from,omitempty"`
	DateTo      string `json:"date_to,omitempty"`
	ExcludeDNFs bool   `json:"exclude_dnfs,omitempty"`
}

// Active reports whether any filter is set.
func (f *HeadToHeadFilters) Active() bool {
	return f.Session != "" || f.TrackType != "" || f.Weather != "" ||
		len(f.Rounds) > 0 || f.DateFrom != "" || f.DateTo != "" || f.ExcludeDNFs
}

func (f *HeadToHeadFilters) validate() error {
	if f.Session != "" && !slices.Contains([]string{"race", "qualifying", "sprint"}, f.Session) {
		return invalid("session must be race, qualifying or sprint")
	}
	if f.TrackType != "" && f.TrackType != "street" && f.TrackType != "permanent" {
		return invalid("track_type must be street or permanent")
	}
	if f.Weather != "" && !slices.Contains([]string{"dry", "wet", "mixed"}, f.Weather) {
		return invalid("weather must be dry, wet or mixed")
	}
	for _, r := range f.Rounds {
		if r < 1 || r > MaxRound {
			return invalid("rounds must be between 1 and %d", MaxRound)
		}
	}
	var from, to time.Time
	var err error
	if f.DateFrom != "" {
		if from, err = time.Parse(DateLayout, f.DateFrom); err != nil {
			return invalid("date_from must be YYYY-MM-DD")
		}
	}
	if f.DateTo != "" {
		if to, err = time.Parse(DateLayout, f.DateTo); err != nil {
			return invalid("date_to must be YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return invalid("date_from must not be after date_to")
	}
	return nil
}

// params adds the active filters to p. Rounds are sorted so equivalent
// filter sets share a cache key.
func (f *HeadToHeadFilters) params(p map[string]any) {
	if f.Session != "" {
		p["session"] = f.Session
	}
	if f.TrackType != "" {
		p["track_type"] = f.TrackType
	}
	if f.Weather != "" {
		p["weather"] = f.Weather
	}
	if len(f.Rounds) > 0 {
		rounds := slices.Clone(f.Rounds)
		slices.Sort(rounds)
		p["rounds"] = slices.Compact(rounds)
	}
	if f.DateFrom != "" {
		p["date_from"] = f.DateFrom
	}
	if f.DateTo != "" {
		p["date_to"] = f.DateTo
	}
	if f.ExcludeDNFs {
		p["exclude_dnfs"] = true
	}
}
