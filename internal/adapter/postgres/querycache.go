package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/cache"
)

// QueryCacheStore persists cache entries in the query_cache table.
type QueryCacheStore struct {
	pool *pgxpool.Pool
}

// NewQueryCacheStore creates a QueryCacheStore.
func NewQueryCacheStore(pool *pgxpool.Pool) *QueryCacheStore {
	return &QueryCacheStore{pool: pool}
}

const entryColumns = `cache_key, query_kind, query_hash, parameters, response, confidence_level,
	coverage_percent, shared_events, methodology_version, schema_version,
	created_at, expires_at, hit_count, last_hit_at`

func scanEntry(row scannable) (*querycache.Entry, error) {
	var (
		e           querycache.Entry
		kind, level string
		params      []byte
		response    []byte
	)
	err := row.Scan(&e.CacheKey, &kind, &e.QueryHash, &params, &response, &level,
		&e.CoveragePercent, &e.SharedEvents, &e.MethodologyVersion, &e.SchemaVersion,
		&e.CreatedAt, &e.ExpiresAt, &e.HitCount, &e.LastHitAt)
	if err != nil {
		return nil, err
	}
	e.QueryKind = intent.Kind(kind)
	e.ConfidenceLevel = coverage.Level(level)
	e.Parameters = params
	e.Response = response
	return &e, nil
}

// GetEntry returns the entry for key, or nil when absent.
func (s *QueryCacheStore) GetEntry(ctx context.Context, key string) (*querycache.Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM query_cache WHERE cache_key = $1`, key)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return e, nil
}

// UpsertEntry writes e, replacing any entry with the same key.
func (s *QueryCacheStore) UpsertEntry(ctx context.Context, e *querycache.Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO query_cache (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, NULL)
		ON CONFLICT (cache_key) DO UPDATE SET
			query_kind = EXCLUDED.query_kind,
			query_hash = EXCLUDED.query_hash,
			parameters = EXCLUDED.parameters,
			response = EXCLUDED.response,
			confidence_level = EXCLUDED.confidence_level,
			coverage_percent = EXCLUDED.coverage_percent,
			shared_events = EXCLUDED.shared_events,
			methodology_version = EXCLUDED.methodology_version,
			schema_version = EXCLUDED.schema_version,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			hit_count = 0,
			last_hit_at = NULL`,
		e.CacheKey, string(e.QueryKind), e.QueryHash, []byte(e.Parameters), []byte(e.Response),
		string(e.ConfidenceLevel), e.CoveragePercent, e.SharedEvents,
		e.MethodologyVersion, e.SchemaVersion, created, nullTime(e.ExpiresAt))
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// IncrementHit records a replay. Missing keys are ignored.
func (s *QueryCacheStore) IncrementHit(ctx context.Context, key string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE query_cache SET hit_count = hit_count + 1, last_hit_at = $2 WHERE cache_key = $1`, key, at)
	if err != nil {
		return fmt.Errorf("increment hit: %w", err)
	}
	return nil
}

func (s *QueryCacheStore) deleteWhere(ctx context.Context, op, sql string, args ...any) (int64, error) {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

func (s *QueryCacheStore) DeleteEntry(ctx context.Context, key string) (int64, error) {
	return s.deleteWhere(ctx, "delete cache entry", `DELETE FROM query_cache WHERE cache_key = $1`, key)
}

func (s *QueryCacheStore) DeleteByKind(ctx context.Context, kind intent.Kind) (int64, error) {
	return s.deleteWhere(ctx, "delete cache kind", `DELETE FROM query_cache WHERE query_kind = $1`, string(kind))
}

func (s *QueryCacheStore) DeleteStaleVersions(ctx context.Context, v querycache.Versions) (int64, error) {
	return s.deleteWhere(ctx, "delete stale versions",
		`DELETE FROM query_cache WHERE methodology_version <> $1 OR schema_version <> $2`,
		v.Methodology, v.Schema)
}

func (s *QueryCacheStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete expired",
		`DELETE FROM query_cache WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
}

// EnforceMaxEntries keeps the limit most recently used entries.
func (s *QueryCacheStore) EnforceMaxEntries(ctx context.Context, limit int64) (int64, error) {
	return s.deleteWhere(ctx, "enforce max entries", `
		WITH ranked AS (
			SELECT cache_key,
			       row_number() OVER (ORDER BY coalesce(last_hit_at, created_at) DESC, cache_key DESC) AS rn
			FROM query_cache
		)
		DELETE FROM query_cache q
		USING ranked r
		WHERE q.cache_key = r.cache_key AND r.rn > $1`, limit)
}

func (s *QueryCacheStore) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM query_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (s *QueryCacheStore) Stats(ctx context.Context) (querycache.Stats, error) {
	st := cache.EmptyStats()
	rows, err := s.pool.Query(ctx, `
		SELECT confidence_level, count(*), coalesce(sum(hit_count), 0)::bigint
		FROM query_cache
		GROUP BY confidence_level`)
	if err != nil {
		return st, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			level      string
			count, hit int64
		)
		if err := rows.Scan(&level, &count, &hit); err != nil {
			return st, fmt.Errorf("scan cache stats: %w", err)
		}
		st.ByLevel[coverage.Level(level)] = count
		st.Entries += count
		st.TotalHits += hit
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

// Reclaim vacuums the cache table. VACUUM cannot run inside a transaction,
// so it goes over the simple protocol.
func (s *QueryCacheStore) Reclaim(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `VACUUM (ANALYZE) query_cache`, pgx.QueryExecModeSimpleProtocol); err != nil {
		return fmt.Errorf("vacuum query_cache: %w", err)
	}
	return nil
}

// Truncate removes every entry. Backs `paddock cache clear`.
func (s *QueryCacheStore) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE query_cache`); err != nil {
		return fmt.Errorf("truncate query_cache: %w", err)
	}
	return nil
}
