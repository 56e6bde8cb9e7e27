// Package database defines the relational store ports.
package database

import "context"

// Row is one result row keyed by column name.
type Row = map[string]any

// Executor runs approved SQL with positional bind parameters.
type Executor interface {
	Execute(ctx context.Context, sql string, params []any) ([]Row, error)
}

// Team is a driver's team for one season.
type Team struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
}

// IdentityStore maps aliases to canonical ids. Lookups take a normalized
// alias and return domain.ErrNotFound when nothing matches.
type IdentityStore interface {
	LookupDriver(ctx context.Context, alias string) (string, error)
	LookupTrack(ctx context.Context, alias string) (string, error)
	// TeamsFor returns every team the driver raced for in season. Drivers
	// who changed team mid-season have more than one.
	TeamsFor(ctx context.Context, season int, driverID string) ([]Team, error)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
