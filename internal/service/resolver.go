package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/paddock/internal/debugtrace"
	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/query"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/port/database"
)

const (
	entityDriver = "driver"
	entityTrack  = "track"

	// lookupTimeout bounds a shared alias lookup, which outlives the
	// request that started it.
	lookupTimeout = 5 * time.Second
)

// IdentityResolver rewrites free-text driver and track references to
// canonical ids and enforces the teammate constraint.
type IdentityResolver struct {
	store database.IdentityStore
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewIdentityResolver creates a resolver. aliases may be nil to disable
// alias caching.
func NewIdentityResolver(store database.IdentityStore, aliases cache.Cache, ttl time.Duration) *IdentityResolver {
	return &IdentityResolver{store: store, cache: aliases, ttl: ttl}
}

// NormalizeAlias lowercases and collapses whitespace.
func NormalizeAlias(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Resolve returns i with every identity field replaced by a canonical id.
// Failures are *query.Error values.
func (r *IdentityResolver) Resolve(ctx context.Context, i intent.Intent) (intent.Resolved, error) {
	tr := debugtrace.FromContext(ctx)
	ids := i.Identities()

	out := intent.Identities{Drivers: make([]string, len(ids.Drivers))}
	for n, ref := range ids.Drivers {
		field := driverField(i.Kind(), n, len(ids.Drivers))
		id, err := r.lookup(ctx, entityDriver, field, ref)
		if err != nil {
			return intent.Resolved{}, err
		}
		tr.IdentityResolved(field, ref, id)
		out.Drivers[n] = id
	}
	if ids.Track != "" {
		id, err := r.lookup(ctx, entityTrack, "track_id", ids.Track)
		if err != nil {
			return intent.Resolved{}, err
		}
		tr.IdentityResolved("track_id", ids.Track, id)
		out.Track = id
	}

	resolved := i.WithIdentities(out)
	// Two aliases of the same driver only collide after resolution.
	if err := resolved.Validate(); err != nil {
		return intent.Resolved{}, query.ValidationFailed(err)
	}

	if intent.RequiresTeammates(resolved.Kind()) {
		if err := r.checkTeammates(ctx, resolved); err != nil {
			return intent.Resolved{}, err
		}
	}
	return intent.Resolve(resolved), nil
}

func driverField(kind intent.Kind, n, total int) string {
	switch {
	case kind == intent.KindDriverMultiComparison:
		return fmt.Sprintf("driver_ids[%d]", n)
	case total == 1:
		return "driver_id"
	case n == 0:
		return "driver_a_id"
	default:
		return "driver_b_id"
	}
}

// lookup resolves one reference through the alias cache, coalescing
// concurrent lookups of the same alias.
func (r *IdentityResolver) lookup(ctx context.Context, entity, field, ref string) (string, error) {
	alias := NormalizeAlias(ref)
	if alias == "" {
		return "", query.IdentityNotFound(field, ref)
	}
	key := entity + ":" + alias

	if r.cache != nil {
		data, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "alias cache get failed", "key", key, "error", err)
		} else if ok {
			return string(data), nil
		}
	}

	// The shared lookup runs detached from any one caller, so a cancelled
	// request only abandons its own wait.
	ch := r.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		var id string
		var err error
		if entity == entityTrack {
			id, err = r.store.LookupTrack(lctx, alias)
		} else {
			id, err = r.store.LookupDriver(lctx, alias)
		}
		if err != nil {
			return "", err
		}
		if r.cache != nil {
			if err := r.cache.Set(lctx, key, []byte(id), r.ttl); err != nil {
				slog.WarnContext(lctx, "alias cache set failed", "key", key, "error", err)
			}
		}
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", query.ExecutionFailed(query.ReasonStoreError, fmt.Errorf("resolve %s: %w", field, ctx.Err()))
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, domain.ErrNotFound) {
				return "", query.IdentityNotFound(field, ref)
			}
			return "", query.ExecutionFailed(query.ReasonStoreError, fmt.Errorf("resolve %s: %w", field, res.Err))
		}
		return res.Val.(string), nil
	}
}

// checkTeammates requires both drivers to share at least one team in the
// intent's season.
func (r *IdentityResolver) checkTeammates(ctx context.Context, i intent.Intent) error {
	seasoned, ok := i.(intent.Seasoned)
	ids := i.Identities()
	if !ok || len(ids.Drivers) != 2 {
		return query.ValidationFailed(fmt.Errorf("%w: %s requires a season and two drivers", domain.ErrValidation, i.Kind()))
	}
	season := seasoned.SeasonYear()
	a, b := ids.Drivers[0], ids.Drivers[1]

	teamsA, err := r.teams(ctx, season, a)
	if err != nil {
		return err
	}
	teamsB, err := r.teams(ctx, season, b)
	if err != nil {
		return err
	}

	for _, ta := range teamsA {
		for _, tb := range teamsB {
			if ta.TeamID == tb.TeamID {
				debugtrace.FromContext(ctx).TeammatesConfirmed(ta.TeamID)
				return nil
			}
		}
	}
	return query.InvalidTeammatePair(season, a, firstTeam(teamsA), b, firstTeam(teamsB))
}

// teams treats a driver with no entry that season as teamless.
func (r *IdentityResolver) teams(ctx context.Context, season int, driverID string) ([]database.Team, error) {
	teams, err := r.store.TeamsFor(ctx, season, driverID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, query.ExecutionFailed(query.ReasonStoreError, fmt.Errorf("teams for %s: %w", driverID, err))
	}
	return teams, nil
}

func firstTeam(teams []database.Team) string {
	if len(teams) == 0 {
		return ""
	}
	return teams[0].TeamID
}
