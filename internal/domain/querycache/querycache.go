// Package querycache defines cached query results and their key derivation.
package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
)

// Entry is one cached query result. HitCount and LastHitAt are the only
// fields mutated after creation.
type Entry struct {
	CacheKey           string          `json:"cache_key"`
	QueryKind          intent.Kind     `json:"query_kind"`
	QueryHash          string          `json:"query_hash"`
	Parameters         json.RawMessage `json:"parameters"`
	Response           json.RawMessage `json:"response"`
	ConfidenceLevel    coverage.Level  `json:"confidence_level"`
	CoveragePercent    *float64        `json:"coverage_percent,omitempty"`
	SharedEvents       *int            `json:"shared_events,omitempty"`
	MethodologyVersion string          `json:"methodology_version"`
	SchemaVersion      string          `json:"schema_version"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	HitCount           int64           `json:"hit_count"`
	LastHitAt          *time.Time      `json:"last_hit_at,omitempty"`
}

// Versions are the running methodology and schema tags.
type Versions struct {
	Methodology string
	Schema      string
}

// Current reports whether e was written under v.
func (e *Entry) Current(v Versions) bool {
	return e.MethodologyVersion == v.Methodology && e.SchemaVersion == v.Schema
}

// Expired reports whether e has passed its expiry at now. Entries without
// an expiry never expire.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Usable reports whether e may be served at now under v.
func (e *Entry) Usable(now time.Time, v Versions) bool {
	return e.Current(v) && !e.Expired(now)
}

// LastUsed is the LRU ordering value.
func (e *Entry) LastUsed() time.Time {
	if e.LastHitAt != nil {
		return *e.LastHitAt
	}
	return e.CreatedAt
}

// HashParams hashes the canonical parameter object. encoding/json writes
// map keys in sorted order, so key insertion order does not matter.
func HashParams(params map[string]any) (string, []byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", nil, fmt.Errorf("hash params: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), body, nil
}

// ComputeKey derives the cache key for kind and its canonical parameters.
func ComputeKey(kind intent.Kind, params map[string]any) (string, error) {
	_, body, err := HashParams(params)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeyPrefix shortens a key for logs and traces.
func KeyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// MaintenanceReport is the outcome of one sweep.
type MaintenanceReport struct {
	StaleVersionsRemoved int64     `json:"stale_versions_removed"`
	ExpiredPurged        int64     `json:"expired_purged"`
	LRUEvicted           int64     `json:"lru_evicted"`
	VacuumSuggested      bool      `json:"vacuum_suggested"`
	Vacuumed             bool      `json:"vacuumed,omitempty"`
	DurationMS           int64     `json:"duration_ms"`
	RemainingEntries     int64     `json:"remaining_entries"`
	FinishedAt           time.Time `json:"finished_at"`
}

// Removed is the total row count deleted by the sweep.
func (r MaintenanceReport) Removed() int64 {
	return r.StaleVersionsRemoved + r.ExpiredPurged + r.LRUEvicted
}

// Stats summarises the cache contents.
type Stats struct {
	Entries   int64                    `json:"entries"`
	ByLevel   map[coverage.Level]int64 `json:"by_confidence_level"`
	TotalHits int64                    `json:"total_hits"`
}

// Invalidation is published when entries are removed on request.
type Invalidation struct {
	Key     string      `json:"cache_key,omitempty"`
	Kind    intent.Kind `json:"query_kind,omitempty"`
	Removed int64       `json:"removed"`
	At      time.Time   `json:"at"`
}
