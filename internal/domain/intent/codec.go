package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

var factories = map[Kind]func() Intent{
	KindSeasonDriverVsDriver:        func() Intent { return &SeasonDriverVsDriver{} },
	KindCrossTeamTrackComparison:    func() Intent { return &CrossTeamTrackComparison{} },
	KindTeammateGapSummary:          func() Intent { return &TeammateGapSummary{} },
	KindTeammateGapDualComparison:   func() Intent { return &TeammateGapDualComparison{} },
	KindDriverHeadToHeadCount:       func() Intent { return &DriverHeadToHeadCount{} },
	KindDriverSeasonSummary:         func() Intent { return &DriverSeasonSummary{} },
	KindDriverCareerSummary:         func() Intent { return &DriverCareerSummary{} },
	KindDriverProfileSummary:        func() Intent { return &DriverProfileSummary{} },
	KindDriverTrendSummary:          func() Intent { return &DriverTrendSummary{} },
	KindDriverPerformanceVector:     func() Intent { return &DriverPerformanceVector{} },
	KindDriverPoleCount:             func() Intent { return &DriverPoleCount{} },
	KindDriverTrackPerformance:      func() Intent { return &DriverTrackPerformance{} },
	KindDriverMultiComparison:       func() Intent { return &DriverMultiComparison{} },
	KindDriverMatchupLookup:         func() Intent { return &DriverMatchupLookup{} },
	KindDriverVsDriverComprehensive: func() Intent { return &DriverVsDriverComprehensive{} },
	KindDriverRanking:               func() Intent { return &DriverRanking{} },
	KindTrackFastestDrivers:         func() Intent { return &TrackFastestDrivers{} },
	KindRaceResultsSummary:          func() Intent { return &RaceResultsSummary{} },
	KindQualifyingResultsSummary:    func() Intent { return &QualifyingResultsSummary{} },
}

// Decode parses a JSON object carrying a "kind" discriminator into the
// matching variant. Fields not declared by the kind are rejected. Decode
// does not call Validate.
func Decode(data []byte) (Intent, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalid("intent must be a JSON object")
	}

	var kind Kind
	if k, ok := raw["kind"]; ok {
		if err := json.Unmarshal(k, &kind); err != nil {
			return nil, invalid("kind must be a string")
		}
	}
	if kind == "" {
		return nil, invalid("kind is required")
	}
	factory, ok := factories[kind]
	if !ok {
		return nil, invalid("unsupported kind %q", kind)
	}
	delete(raw, "kind")

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode intent: %w", err)
	}

	v := factory()
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return nil, invalid("%s: %v", kind, err)
	}
	return v, nil
}

// Marshal encodes i as a JSON object including its "kind".
func Marshal(i Intent) ([]byte, error) {
	body, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(i.Kind())
	if err != nil {
		return nil, err
	}
	fields["kind"] = kind
	return json.Marshal(fields)
}

// Envelope carries an Intent through JSON boundaries.
type Envelope struct {
	Intent
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Intent == nil {
		return []byte("null"), nil
	}
	return Marshal(e.Intent)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		e.Intent = nil
		return nil
	}
	i, err := Decode(data)
	if err != nil {
		return err
	}
	e.Intent = i
	return nil
}

// Resolved wraps an intent whose identity fields hold canonical ids. It can
// only be constructed through Resolve, so downstream stages never perform
// further lookups.
type Resolved struct {
	intent Intent
}

// Resolve marks i as resolved. Callers must have rewritten every identity
// field to a canonical id beforehand.
func Resolve(i Intent) Resolved {
	return Resolved{intent: i}
}

// Intent returns the underlying intent.
func (r Resolved) Intent() Intent { return r.intent }

// Kind returns the underlying intent's kind.
func (r Resolved) Kind() Kind { return r.intent.Kind() }

func sortedSet(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
