package intent

import "strings"

// DriverPair is embedded by kinds comparing exactly two drivers.
type DriverPair struct {
	DriverAID string `json:"driver_a_id"`
	DriverBID string `json:"driver_b_id"`
}

func (p *DriverPair) validate() error {
	return firstErr(checkRef("driver_a_id", p.DriverAID), checkRef("driver_b_id", p.DriverBID), checkDistinct(p.DriverAID, p.DriverBID))
}

func (p *DriverPair) identities() Identities {
	return Identities{Drivers: []string{p.DriverAID, p.DriverBID}}
}

func (p *DriverPair) set(ids Identities) {
	if len(ids.Drivers) == 2 {
		p.DriverAID, p.DriverBID = ids.Drivers[0], ids.Drivers[1]
	}
}

func (p *DriverPair) params(m map[string]any) {
	m["driver_a_id"] = p.DriverAID
	m["driver_b_id"] = p.DriverBID
}

// SeasonDriverVsDriver compares two drivers' season pace.
type SeasonDriverVsDriver struct {
	Season int `json:"season"`
	DriverPair
	Normalization Normalization `json:"normalization,omitempty"`
}

func (i *SeasonDriverVsDriver) Kind() Kind      { return KindSeasonDriverVsDriver }
func (i *SeasonDriverVsDriver) SeasonYear() int { return i.Season }

func (i *SeasonDriverVsDriver) Validate() error {
	return firstErr(checkSeason("season", i.Season), i.DriverPair.validate(), i.Normalization.validate())
}

func (i *SeasonDriverVsDriver) Identities() Identities { return i.DriverPair.identities() }

func (i *SeasonDriverVsDriver) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *SeasonDriverVsDriver) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season, "normalization": string(i.Normalization.orDefault())}
	i.DriverPair.params(m)
	return m
}

// EffectiveNormalization returns the normalization with the default applied.
func (i *SeasonDriverVsDriver) EffectiveNormalization() Normalization {
	return i.Normalization.orDefault()
}

// CrossTeamTrackComparison compares two drivers at one track in one season,
// regardless of team.
type CrossTeamTrackComparison struct {
	Season  int    `json:"season"`
	TrackID string `json:"track_id"`
	DriverPair
	Normalization Normalization `json:"normalization,omitempty"`
}

func (i *CrossTeamTrackComparison) Kind() Kind      { return KindCrossTeamTrackComparison }
func (i *CrossTeamTrackComparison) SeasonYear() int { return i.Season }

func (i *CrossTeamTrackComparison) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("track_id", i.TrackID), i.DriverPair.validate(), i.Normalization.validate())
}

func (i *CrossTeamTrackComparison) Identities() Identities {
	ids := i.DriverPair.identities()
	ids.Track = i.TrackID
	return ids
}

func (i *CrossTeamTrackComparison) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	if ids.Track != "" {
		c.TrackID = ids.Track
	}
	return &c
}

func (i *CrossTeamTrackComparison) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season, "track_id": i.TrackID, "normalization": string(i.Normalization.orDefault())}
	i.DriverPair.params(m)
	return m
}

// TeammateGapSummary summarises the season gap between two teammates.
type TeammateGapSummary struct {
	Season int `json:"season"`
	DriverPair
}

func (i *TeammateGapSummary) Kind() Kind      { return KindTeammateGapSummary }
func (i *TeammateGapSummary) SeasonYear() int { return i.Season }

func (i *TeammateGapSummary) Validate() error {
	return firstErr(checkSeason("season", i.Season), i.DriverPair.validate())
}

func (i *TeammateGapSummary) Identities() Identities { return i.DriverPair.identities() }

func (i *TeammateGapSummary) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *TeammateGapSummary) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season}
	i.DriverPair.params(m)
	return m
}

// TeammateGapDualComparison reports both the qualifying and the race gap
// between two teammates.
type TeammateGapDualComparison struct {
	Season int `json:"season"`
	DriverPair
}

func (i *TeammateGapDualComparison) Kind() Kind      { return KindTeammateGapDualComparison }
func (i *TeammateGapDualComparison) SeasonYear() int { return i.Season }

func (i *TeammateGapDualComparison) Validate() error {
	return firstErr(checkSeason("season", i.Season), i.DriverPair.validate())
}

func (i *TeammateGapDualComparison) Identities() Identities { return i.DriverPair.identities() }

func (i *TeammateGapDualComparison) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *TeammateGapDualComparison) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season}
	i.DriverPair.params(m)
	return m
}

// DriverHeadToHeadCount counts events where each driver finished ahead.
type DriverHeadToHeadCount struct {
	Season int `json:"season"`
	DriverPair
	Metric H2HMetric `json:"h2h_metric,omitempty"`
	HeadToHeadFilters
}

func (i *DriverHeadToHeadCount) Kind() Kind      { return KindDriverHeadToHeadCount }
func (i *DriverHeadToHeadCount) SeasonYear() int { return i.Season }

func (i *DriverHeadToHeadCount) Validate() error {
	return firstErr(checkSeason("season", i.Season), i.DriverPair.validate(), i.Metric.validate(), i.HeadToHeadFilters.validate())
}

func (i *DriverHeadToHeadCount) Identities() Identities { return i.DriverPair.identities() }

func (i *DriverHeadToHeadCount) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *DriverHeadToHeadCount) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season, "h2h_metric": string(i.Metric.orDefault())}
	i.DriverPair.params(m)
	i.HeadToHeadFilters.params(m)
	return m
}

// EffectiveMetric returns the metric with the default applied.
func (i *DriverHeadToHeadCount) EffectiveMetric() H2HMetric { return i.Metric.orDefault() }

// DriverSeasonSummary summarises one driver's season.
type DriverSeasonSummary struct {
	Season   int    `json:"season"`
	DriverID string `json:"driver_id"`
}

func (i *DriverSeasonSummary) Kind() Kind      { return KindDriverSeasonSummary }
func (i *DriverSeasonSummary) SeasonYear() int { return i.Season }

func (i *DriverSeasonSummary) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("driver_id", i.DriverID))
}

func (i *DriverSeasonSummary) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverSeasonSummary) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverSeasonSummary) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "driver_id": i.DriverID}
}

// DriverCareerSummary summarises one driver's career.
type DriverCareerSummary struct {
	DriverID string `json:"driver_id"`
}

func (i *DriverCareerSummary) Kind() Kind { return KindDriverCareerSummary }

func (i *DriverCareerSummary) Validate() error { return checkRef("driver_id", i.DriverID) }

func (i *DriverCareerSummary) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverCareerSummary) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverCareerSummary) CanonicalParams() map[string]any {
	return map[string]any{"driver_id": i.DriverID}
}

// DriverProfileSummary returns a driver's profile with headline numbers.
type DriverProfileSummary struct {
	DriverID string `json:"driver_id"`
}

func (i *DriverProfileSummary) Kind() Kind { return KindDriverProfileSummary }

func (i *DriverProfileSummary) Validate() error { return checkRef("driver_id", i.DriverID) }

func (i *DriverProfileSummary) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverProfileSummary) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverProfileSummary) CanonicalParams() map[string]any {
	return map[string]any{"driver_id": i.DriverID}
}

// DriverTrendSummary reports a driver's pace trend across a season range.
type DriverTrendSummary struct {
	DriverID    string `json:"driver_id"`
	StartSeason int    `json:"start_season"`
	EndSeason   int    `json:"end_season"`
}

func (i *DriverTrendSummary) Kind() Kind { return KindDriverTrendSummary }

func (i *DriverTrendSummary) Validate() error {
	if err := firstErr(checkRef("driver_id", i.DriverID), checkSeason("start_season", i.StartSeason), checkSeason("end_season", i.EndSeason)); err != nil {
		return err
	}
	if i.StartSeason > i.EndSeason {
		return invalid("start_season must not be after end_season")
	}
	return nil
}

func (i *DriverTrendSummary) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverTrendSummary) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverTrendSummary) CanonicalParams() map[string]any {
	return map[string]any{"driver_id": i.DriverID, "start_season": i.StartSeason, "end_season": i.EndSeason}
}

// DriverPerformanceVector returns a driver's per-dimension season profile
// (qualifying, race pace, consistency, starts).
type DriverPerformanceVector struct {
	Season   int    `json:"season"`
	DriverID string `json:"driver_id"`
}

func (i *DriverPerformanceVector) Kind() Kind      { return KindDriverPerformanceVector }
func (i *DriverPerformanceVector) SeasonYear() int { return i.Season }

func (i *DriverPerformanceVector) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("driver_id", i.DriverID))
}

func (i *DriverPerformanceVector) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverPerformanceVector) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverPerformanceVector) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "driver_id": i.DriverID}
}

// DriverPoleCount counts a driver's pole positions in a season.
type DriverPoleCount struct {
	Season   int    `json:"season"`
	DriverID string `json:"driver_id"`
}

func (i *DriverPoleCount) Kind() Kind      { return KindDriverPoleCount }
func (i *DriverPoleCount) SeasonYear() int { return i.Season }

func (i *DriverPoleCount) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("driver_id", i.DriverID))
}

func (i *DriverPoleCount) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}}
}

func (i *DriverPoleCount) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	return &c
}

func (i *DriverPoleCount) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "driver_id": i.DriverID}
}

// DriverTrackPerformance reports a driver's record at one track, optionally
// limited to one season.
type DriverTrackPerformance struct {
	DriverID string `json:"driver_id"`
	TrackID  string `json:"track_id"`
	Season   int    `json:"season,omitempty"`
}

func (i *DriverTrackPerformance) Kind() Kind { return KindDriverTrackPerformance }

func (i *DriverTrackPerformance) Validate() error {
	if err := firstErr(checkRef("driver_id", i.DriverID), checkRef("track_id", i.TrackID)); err != nil {
		return err
	}
	if i.Season != 0 {
		return checkSeason("season", i.Season)
	}
	return nil
}

func (i *DriverTrackPerformance) Identities() Identities {
	return Identities{Drivers: []string{i.DriverID}, Track: i.TrackID}
}

func (i *DriverTrackPerformance) WithIdentities(ids Identities) Intent {
	c := *i
	setSingle(&c.DriverID, ids)
	if ids.Track != "" {
		c.TrackID = ids.Track
	}
	return &c
}

func (i *DriverTrackPerformance) CanonicalParams() map[string]any {
	m := map[string]any{"driver_id": i.DriverID, "track_id": i.TrackID}
	if i.Season != 0 {
		m["season"] = i.Season
	}
	return m
}

// MinMultiDrivers and MaxMultiDrivers bound driver_multi_comparison.
const (
	MinMultiDrivers = 2
	MaxMultiDrivers = 6
)

// DriverMultiComparison ranks several drivers on one season metric.
type DriverMultiComparison struct {
	Season    int              `json:"season"`
	DriverIDs []string         `json:"driver_ids"`
	Metric    ComparisonMetric `json:"comparison_metric,omitempty"`
}

func (i *DriverMultiComparison) Kind() Kind      { return KindDriverMultiComparison }
func (i *DriverMultiComparison) SeasonYear() int { return i.Season }

func (i *DriverMultiComparison) Validate() error {
	if err := checkSeason("season", i.Season); err != nil {
		return err
	}
	if len(i.DriverIDs) < MinMultiDrivers || len(i.DriverIDs) > MaxMultiDrivers {
		return invalid("driver_ids must contain between %d and %d drivers", MinMultiDrivers, MaxMultiDrivers)
	}
	seen := make(map[string]bool, len(i.DriverIDs))
	for _, d := range i.DriverIDs {
		if err := checkRef("driver_ids", d); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(d))
		if seen[key] {
			return invalid("driver_ids must be distinct")
		}
		seen[key] = true
	}
	return i.Metric.validate()
}

func (i *DriverMultiComparison) Identities() Identities {
	return Identities{Drivers: append([]string(nil), i.DriverIDs...)}
}

func (i *DriverMultiComparison) WithIdentities(ids Identities) Intent {
	c := *i
	if len(ids.Drivers) == len(i.DriverIDs) {
		c.DriverIDs = append([]string(nil), ids.Drivers...)
	}
	return &c
}

// CanonicalParams sorts the driver set; the comparison is order-independent.
func (i *DriverMultiComparison) CanonicalParams() map[string]any {
	return map[string]any{
		"season":            i.Season,
		"driver_ids":        sortedSet(i.DriverIDs),
		"comparison_metric": string(i.Metric.orDefault()),
	}
}

// EffectiveMetric returns the metric with the default applied.
func (i *DriverMultiComparison) EffectiveMetric() ComparisonMetric { return i.Metric.orDefault() }

// DriverMatchupLookup returns the career head-to-head between two drivers.
type DriverMatchupLookup struct {
	DriverPair
	Metric H2HMetric `json:"h2h_metric,omitempty"`
}

func (i *DriverMatchupLookup) Kind() Kind { return KindDriverMatchupLookup }

func (i *DriverMatchupLookup) Validate() error {
	return firstErr(i.DriverPair.validate(), i.Metric.validate())
}

func (i *DriverMatchupLookup) Identities() Identities { return i.DriverPair.identities() }

func (i *DriverMatchupLookup) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *DriverMatchupLookup) CanonicalParams() map[string]any {
	m := map[string]any{"h2h_metric": string(i.Metric.orDefault())}
	i.DriverPair.params(m)
	return m
}

// EffectiveMetric returns the metric with the default applied.
func (i *DriverMatchupLookup) EffectiveMetric() H2HMetric { return i.Metric.orDefault() }

// DriverVsDriverComprehensive combines pace, qualifying and results for two drivers.
type DriverVsDriverComprehensive struct {
	Season int `json:"season"`
	DriverPair
}

func (i *DriverVsDriverComprehensive) Kind() Kind      { return KindDriverVsDriverComprehensive }
func (i *DriverVsDriverComprehensive) SeasonYear() int { return i.Season }

func (i *DriverVsDriverComprehensive) Validate() error {
	return firstErr(checkSeason("season", i.Season), i.DriverPair.validate())
}

func (i *DriverVsDriverComprehensive) Identities() Identities { return i.DriverPair.identities() }

func (i *DriverVsDriverComprehensive) WithIdentities(ids Identities) Intent {
	c := *i
	c.DriverPair.set(ids)
	return &c
}

func (i *DriverVsDriverComprehensive) CanonicalParams() map[string]any {
	m := map[string]any{"season": i.Season}
	i.DriverPair.params(m)
	return m
}

// DriverRanking ranks the field by season pace.
type DriverRanking struct {
	Season int `json:"season"`
	Limit  int `json:"limit,omitempty"`
}

func (i *DriverRanking) Kind() Kind      { return KindDriverRanking }
func (i *DriverRanking) SeasonYear() int { return i.Season }

func (i *DriverRanking) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkLimit(i.Limit))
}

func (i *DriverRanking) Identities() Identities { return Identities{} }

func (i *DriverRanking) WithIdentities(Identities) Intent {
	c := *i
	return &c
}

func (i *DriverRanking) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "limit": limitOrDefault(i.Limit)}
}

// EffectiveLimit returns the limit with the default applied.
func (i *DriverRanking) EffectiveLimit() int { return limitOrDefault(i.Limit) }

// TrackFastestDrivers ranks drivers by pace at one track in one season.
type TrackFastestDrivers struct {
	Season  int    `json:"season"`
	TrackID string `json:"track_id"`
	Limit   int    `json:"limit,omitempty"`
}

func (i *TrackFastestDrivers) Kind() Kind      { return KindTrackFastestDrivers }
func (i *TrackFastestDrivers) SeasonYear() int { return i.Season }

func (i *TrackFastestDrivers) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("track_id", i.TrackID), checkLimit(i.Limit))
}

func (i *TrackFastestDrivers) Identities() Identities { return Identities{Track: i.TrackID} }

func (i *TrackFastestDrivers) WithIdentities(ids Identities) Intent {
	c := *i
	if ids.Track != "" {
		c.TrackID = ids.Track
	}
	return &c
}

func (i *TrackFastestDrivers) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "track_id": i.TrackID, "limit": limitOrDefault(i.Limit)}
}

// EffectiveLimit returns the limit with the default applied.
func (i *TrackFastestDrivers) EffectiveLimit() int { return limitOrDefault(i.Limit) }

// RaceResultsSummary returns the classified results of one race.
type RaceResultsSummary struct {
	Season  int    `json:"season"`
	TrackID string `json:"track_id"`
}

func (i *RaceResultsSummary) Kind() Kind      { return KindRaceResultsSummary }
func (i *RaceResultsSummary) SeasonYear() int { return i.Season }

func (i *RaceResultsSummary) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("track_id", i.TrackID))
}

func (i *RaceResultsSummary) Identities() Identities { return Identities{Track: i.TrackID} }

func (i *RaceResultsSummary) WithIdentities(ids Identities) Intent {
	c := *i
	if ids.Track != "" {
		c.TrackID = ids.Track
	}
	return &c
}

func (i *RaceResultsSummary) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "track_id": i.TrackID}
}

// QualifyingResultsSummary returns the qualifying classification of one event.
type QualifyingResultsSummary struct {
	Season  int    `json:"season"`
	TrackID string `json:"track_id"`
}

func (i *QualifyingResultsSummary) Kind() Kind      { return KindQualifyingResultsSummary }
func (i *QualifyingResultsSummary) SeasonYear() int { return i.Season }

func (i *QualifyingResultsSummary) Validate() error {
	return firstErr(checkSeason("season", i.Season), checkRef("track_id", i.TrackID))
}

func (i *QualifyingResultsSummary) Identities() Identities { return Identities{Track: i.TrackID} }

func (i *QualifyingResultsSummary) WithIdentities(ids Identities) Intent {
	c := *i
	if ids.Track != "" {
		c.TrackID = ids.Track
	}
	return &c
}

func (i *QualifyingResultsSummary) CanonicalParams() map[string]any {
	return map[string]any{"season": i.Season, "track_id": i.TrackID}
}

func setSingle(dst *string, ids Identities) {
	if len(ids.Drivers) == 1 {
		*dst = ids.Drivers[0]
	}
}
