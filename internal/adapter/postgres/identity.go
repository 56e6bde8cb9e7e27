package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/port/database"
)

// IdentityStore resolves driver and track aliases.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore creates an IdentityStore.
func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

// Canonical ids win over aliases, aliases over names and codes.
const lookupDriverSQL = `
SELECT driver_id FROM (
    SELECT driver_id, 0 AS rank FROM drivers WHERE driver_id = $1
    UNION ALL
    SELECT driver_id, 1 FROM driver_aliases WHERE lower(alias) = $1
    UNION ALL
    SELECT driver_id, 2 FROM drivers WHERE lower(full_name) = $1 OR lower(last_name) = $1
    UNION ALL
    SELECT driver_id, 3 FROM drivers WHERE lower(code) = $1
) m
ORDER BY rank, driver_id
LIMIT 1`

const lookupTrackSQL = `
SELECT track_id FROM (
    SELECT track_id, 0 AS rank FROM tracks WHERE track_id = $1
    UNION ALL
    SELECT track_id, 1 FROM track_aliases WHERE lower(alias) = $1
    UNION ALL
    SELECT track_id, 2 FROM tracks WHERE lower(track_name) = $1 OR lower(country) = $1
) m
ORDER BY rank, track_id
LIMIT 1`

// LookupDriver returns the canonical driver id for a normalized alias.
func (s *IdentityStore) LookupDriver(ctx context.Context, alias string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, lookupDriverSQL, alias).Scan(&id); err != nil {
		return "", notFoundWrap(err, "lookup driver %q", alias)
	}
	return id, nil
}

// LookupTrack returns the canonical track id for a normalized alias.
func (s *IdentityStore) LookupTrack(ctx context.Context, alias string) (string, error) {
	var id string
	if err := s.pool.QueryRow(ctx, lookupTrackSQL, alias).Scan(&id); err != nil {
		return "", notFoundWrap(err, "lookup track %q", alias)
	}
	return id, nil
}

// TeamsFor lists the driver's teams in season.
func (s *IdentityStore) TeamsFor(ctx context.Context, season int, driverID string) ([]database.Team, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.team_id, coalesce(t.team_name, e.team_id)
		FROM driver_season_entries e
		LEFT JOIN teams t ON t.team_id = e.team_id
		WHERE e.season = $1 AND e.driver_id = $2
		ORDER BY e.team_id`, season, driverID)
	if err != nil {
		return nil, fmt.Errorf("teams for %s/%d: %w", driverID, season, err)
	}
	defer rows.Close()

	var teams []database.Team
	for rows.Next() {
		var t database.Team
		if err := rows.Scan(&t.TeamID, &t.TeamName); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("teams for %s/%d: %w", driverID, season, err)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("teams for %s/%d: %w", driverID, season, domain.ErrNotFound)
	}
	return teams, nil
}
