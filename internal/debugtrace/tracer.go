// Package debugtrace records an opt-in, per-request trace of pipeline
// stages. A nil *Tracer is the disabled tracer: every method is a no-op.
package debugtrace

import (
	"context"
	"time"
)

// Step is one recorded transition.
type Step struct {
	At      time.Time      `json:"at"`
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// IdentityChange is an input reference and what it resolved to.
type IdentityChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Cache describes the cache decision for the request.
type Cache struct {
	Status    string `json:"status"` // hit | miss | bypass
	KeyPrefix string `json:"key_prefix,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Trace is the finished record.
type Trace struct {
	TraceID       string           `json:"trace_id"`
	Steps         []Step           `json:"steps"`
	Identities    []IdentityChange `json:"identities,omitempty"`
	TemplateID    string           `json:"template_id,omitempty"`
	Cache         *Cache           `json:"cache,omitempty"`
	SQLParamTypes []string         `json:"sql_param_types,omitempty"`
	RowCount      *int             `json:"row_count,omitempty"`
	Confidence    string           `json:"confidence_level,omitempty"`
	TimingsMS     map[string]int64 `json:"timings_ms,omitempty"`
	TotalMS       int64            `json:"total_ms"`
}

// Stage names match the orchestrator states.
const (
	StageValidating  = "validating"
	StageResolving   = "resolving"
	StageCacheCheck  = "cache_check"
	StageExecuting   = "executing"
	StageClassifying = "classifying"
	StageCacheWrite  = "cache_write"
)

// Tracer appends steps for one request. It is not safe for concurrent use;
// a request runs its stages sequentially.
type Tracer struct {
	start time.Time
	now   func() time.Time
	trace Trace
}

// New returns an enabled tracer, or nil when enabled is false.
func New(enabled bool, traceID string) *Tracer {
	if !enabled {
		return nil
	}
	t := &Tracer{now: time.Now}
	t.start = t.now()
	t.trace.TraceID = traceID
	return t
}

// Enabled reports whether t records anything.
func (t *Tracer) Enabled() bool { return t != nil }

// step appends a step. Callers check t for nil first so that fields are
// only built for an enabled tracer.
func (t *Tracer) step(stage, message string, fields map[string]any) {
	t.trace.Steps = append(t.trace.Steps, Step{At: t.now(), Stage: stage, Message: message, Fields: fields})
}

// IntentParsed records the accepted intent kind.
func (t *Tracer) IntentParsed(kind string) {
	if t == nil {
		return
	}
	t.step(StageValidating, "intent parsed", map[string]any{"kind": kind})
}

// IdentityResolved records one rewritten reference.
func (t *Tracer) IdentityResolved(field, before, after string) {
	if t == nil {
		return
	}
	t.trace.Identities = append(t.trace.Identities, IdentityChange{Field: field, Before: before, After: after})
	t.step(StageResolving, "identity resolved", map[string]any{"field": field, "before": before, "after": after})
}

// TeammatesConfirmed records the team both drivers shared.
func (t *Tracer) TeammatesConfirmed(teamID string) {
	if t == nil {
		return
	}
	t.step(StageResolving, "teammates confirmed", map[string]any{"team_id": teamID})
}

// TemplateSelected records the chosen template.
func (t *Tracer) TemplateSelected(id string) {
	if t == nil {
		return
	}
	t.trace.TemplateID = id
	t.step(StageExecuting, "template selected", map[string]any{"template_id": id})
}

// CacheHit records a replay from the cache.
func (t *Tracer) CacheHit(keyPrefix string) { t.cache("hit", keyPrefix, "") }

// CacheMiss records a cache lookup that found nothing usable.
func (t *Tracer) CacheMiss(keyPrefix string) { t.cache("miss", keyPrefix, "") }

// CacheBypass records a skipped lookup.
func (t *Tracer) CacheBypass(keyPrefix, reason string) { t.cache("bypass", keyPrefix, reason) }

func (t *Tracer) cache(status, keyPrefix, reason string) {
	if t == nil {
		return
	}
	t.trace.Cache = &Cache{Status: status, KeyPrefix: keyPrefix, Reason: reason}
	fields := map[string]any{"status": status, "key_prefix": keyPrefix}
	if reason != "" {
		fields["reason"] = reason
	}
	t.step(StageCacheCheck, "cache "+status, fields)
}

// SQLParamTypes records bind parameter types. Values are never recorded.
func (t *Tracer) SQLParamTypes(types []string) {
	if t == nil {
		return
	}
	t.trace.SQLParamTypes = append([]string(nil), types...)
	t.step(StageExecuting, "parameters bound", map[string]any{"count": len(types)})
}

// RowsReturned records the result size.
func (t *Tracer) RowsReturned(n int) {
	if t == nil {
		return
	}
	t.trace.RowCount = &n
	t.step(StageExecuting, "rows returned", map[string]any{"rows": n})
}

// Coverage records the confidence classification.
func (t *Tracer) Coverage(level string, sample *int) {
	if t == nil {
		return
	}
	t.trace.Confidence = level
	fields := map[string]any{"confidence_level": level}
	if sample != nil {
		fields["shared_events"] = *sample
	}
	t.step(StageClassifying, "coverage classified", fields)
}

// Cached records a successful cache write.
func (t *Tracer) Cached(keyPrefix string, ttlSeconds int64) {
	if t == nil {
		return
	}
	t.step(StageCacheWrite, "result cached", map[string]any{"key_prefix": keyPrefix, "ttl_seconds": ttlSeconds})
}

// Failed records the stage a request failed in and why.
func (t *Tracer) Failed(stage, kind, reason string) {
	if t == nil {
		return
	}
	t.step(stage, "failed", map[string]any{"error": kind, "reason": reason})
}

// Timing records the duration of a named stage.
func (t *Tracer) Timing(stage string, d time.Duration) {
	if t == nil {
		return
	}
	if t.trace.TimingsMS == nil {
		t.trace.TimingsMS = make(map[string]int64)
	}
	t.trace.TimingsMS[stage] = d.Milliseconds()
}

// Finish stamps the total duration and returns the trace. A disabled
// tracer returns nil.
func (t *Tracer) Finish() *Trace {
	if t == nil {
		return nil
	}
	out := t.trace
	out.TotalMS = t.now().Sub(t.start).Milliseconds()
	out.Steps = append([]Step(nil), t.trace.Steps...)
	return &out
}

type ctxKey struct{}

// WithTracer attaches t to ctx. A nil tracer leaves ctx unchanged.
func WithTracer(ctx context.Context, t *Tracer) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tracer carried by ctx, or the disabled tracer.
func FromContext(ctx context.Context) *Tracer {
	t, _ := ctx.Value(ctxKey{}).(*Tracer)
	return t
}
