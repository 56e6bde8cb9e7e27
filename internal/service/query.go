package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	pdotel "github.com/Strob0t/paddock/internal/adapter/otel"
	"github.com/Strob0t/paddock/internal/debugtrace"
	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/query"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/domain/template"
	"github.com/Strob0t/paddock/internal/logger"
	"github.com/Strob0t/paddock/internal/port/database"
	"github.com/Strob0t/paddock/internal/port/templatestore"
	"github.com/Strob0t/paddock/internal/resilience"
)

// Resolver turns an intent's references into canonical ids.
type Resolver interface {
	Resolve(ctx context.Context, i intent.Intent) (intent.Resolved, error)
}

// Dual comparison columns. Either may be null when one session type has
// no shared data.
const (
	colQualifyingGap = "qualifying_gap_percent"
	colRaceGap       = "race_gap_percent"
)

// QueryService runs the query pipeline: validate, resolve, cache check,
// execute, classify and cache write. It holds no per-request state.
type QueryService struct {
	resolver  Resolver
	cache     *CacheService
	templates templatestore.Store
	exec      database.Executor
	evaluator *coverage.Evaluator
	metrics   *pdotel.Metrics
	now       func() time.Time
}

// NewQueryService wires the pipeline stages.
func NewQueryService(resolver Resolver, c *CacheService, templates templatestore.Store, exec database.Executor, evaluator *coverage.Evaluator) *QueryService {
	return &QueryService{
		resolver:  resolver,
		cache:     c,
		templates: templates,
		exec:      exec,
		evaluator: evaluator,
		now:       time.Now,
	}
}

// SetMetrics enables pipeline metrics.
func (s *QueryService) SetMetrics(m *pdotel.Metrics) { s.metrics = m }

// Execute answers in. The error, when non-nil, is a *query.Error and the
// result is nil. The trace is non-nil only when opts.Debug is set; it is
// returned on failure too.
func (s *QueryService) Execute(ctx context.Context, in intent.Intent, opts query.Options) (*query.Result, *debugtrace.Trace, error) {
	start := s.now()
	var tr *debugtrace.Tracer
	if opts.Debug {
		traceID := logger.RequestID(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		tr = debugtrace.New(true, traceID)
	}
	ctx = debugtrace.WithTracer(ctx, tr)

	var kind intent.Kind
	if in != nil {
		kind = in.Kind()
	}
	ctx, span := pdotel.StartQuerySpan(ctx, kind)

	p := &pipeline{svc: s, tr: tr, state: query.StateValidating, opts: opts}
	res, err := p.run(ctx, in)

	elapsed := s.now().Sub(start)
	tr.Timing("total", elapsed)
	outcome := "ok"
	if qe, ok := query.AsError(err); ok {
		outcome = string(qe.Kind)
	}
	s.metrics.RecordQuery(ctx, kind, outcome, elapsed)
	pdotel.EndSpan(span, err)

	if err != nil {
		level := slog.LevelInfo
		if qe, ok := query.AsError(err); ok && qe.Kind == query.ErrExecutionFailed && !qe.InsufficientData() {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "query failed", "kind", kind, "state", p.failedAt, "error", err, "duration_ms", elapsed.Milliseconds())
		return nil, tr.Finish(), err
	}
	slog.InfoContext(ctx, "query answered",
		"kind", kind,
		"template_id", res.Metadata.TemplateID,
		"rows", res.Metadata.RowCount,
		"cached", res.Metadata.Cached,
		"confidence_level", res.Interpretation.ConfidenceLevel,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, tr.Finish(), nil
}

// pipeline carries one request through the state machine. States are
// entered in order and never revisited.
type pipeline struct {
	svc      *QueryService
	tr       *debugtrace.Tracer
	opts     query.Options
	state    query.State
	failedAt query.State
	stageAt  time.Time
}

func (p *pipeline) advance(ctx context.Context, next query.State) {
	if !query.CanTransition(p.state, next) {
		slog.ErrorContext(ctx, "illegal pipeline transition", "from", p.state, "to", next)
	}
	now := p.svc.now()
	if !p.stageAt.IsZero() {
		p.tr.Timing(string(p.state), now.Sub(p.stageAt))
	}
	p.stageAt = now
	p.state = next
}

func (p *pipeline) fail(ctx context.Context, err *query.Error) error {
	p.failedAt = p.state
	p.advance(ctx, query.StateFailed)
	p.tr.Failed(string(p.failedAt), string(err.Kind), err.Reason)
	return err
}

func (p *pipeline) run(ctx context.Context, in intent.Intent) (*query.Result, error) {
	p.stageAt = p.svc.now()

	// Validating
	if in == nil {
		return nil, p.fail(ctx, query.ValidationFailed(fmt.Errorf("%w: intent is required", domain.ErrValidation)))
	}
	if err := in.Validate(); err != nil {
		return nil, p.fail(ctx, query.ValidationFailed(err))
	}
	p.tr.IntentParsed(string(in.Kind()))

	// Resolving
	p.advance(ctx, query.StateResolving)
	stageCtx, span := pdotel.StartStageSpan(ctx, "resolve")
	resolved, err := p.svc.resolver.Resolve(stageCtx, in)
	pdotel.EndSpan(span, err)
	if err != nil {
		return nil, p.fail(ctx, asQueryError(err, query.ReasonStoreError))
	}
	ri := resolved.Intent()

	// CacheCheck
	p.advance(ctx, query.StateCacheCheck)
	key, err := p.svc.cache.Key(ri)
	if err != nil {
		return nil, p.fail(ctx, query.ExecutionFailed(query.ReasonTemplateError, err))
	}
	if res := p.cacheLookup(ctx, ri, key); res != nil {
		p.advance(ctx, query.StateDone)
		return res, nil
	}

	// Executing
	p.advance(ctx, query.StateExecuting)
	id, rows, qerr := p.execute(ctx, resolved)
	if qerr != nil {
		return nil, p.fail(ctx, qerr)
	}
	if len(rows) == 0 {
		return nil, p.fail(ctx, query.InsufficientData(string(id)))
	}
	partialMissing, qerr := dualMissing(ri.Kind(), rows, id)
	if qerr != nil {
		return nil, p.fail(ctx, qerr)
	}

	// Classifying
	p.advance(ctx, query.StateClassifying)
	cov := p.svc.evaluator.Evaluate(ri.Kind(), rows)
	p.tr.Coverage(string(cov.Level), cov.SharedEvents)
	res := p.buildResult(ri, id, rows, cov, partialMissing)

	if !cov.Level.Cacheable() {
		p.advance(ctx, query.StateDone)
		return res, nil
	}

	// CacheWrite
	p.advance(ctx, query.StateCacheWrite)
	p.cacheWrite(ctx, key, ri, res, cov)
	p.advance(ctx, query.StateDone)
	return res, nil
}

// cacheLookup returns a replayed result on a usable hit. Lookup failures
// degrade to a miss.
func (p *pipeline) cacheLookup(ctx context.Context, i intent.Intent, key string) *query.Result {
	prefix := querycache.KeyPrefix(key)
	if p.opts.BypassCache() {
		reason := "force_refresh"
		if p.opts.Debug {
			reason = "debug"
		}
		p.tr.CacheBypass(prefix, reason)
		p.svc.metrics.CacheBypass(ctx, i.Kind())
		return nil
	}

	entry, hit, err := p.svc.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache lookup failed, executing", "key", prefix, "error", err)
	}
	if !hit {
		p.tr.CacheMiss(prefix)
		p.svc.metrics.CacheMiss(ctx, i.Kind())
		return nil
	}

	var cached query.Result
	if err := json.Unmarshal(entry.Response, &cached); err != nil {
		slog.WarnContext(ctx, "cached response unreadable, executing", "key", prefix, "error", err)
		p.tr.CacheMiss(prefix)
		p.svc.metrics.CacheMiss(ctx, i.Kind())
		return nil
	}
	p.tr.CacheHit(prefix)
	p.svc.metrics.CacheHit(ctx, i.Kind())
	p.svc.cache.IncrementHit(ctx, key)
	return cached.Replayed(entry.CreatedAt)
}

func (p *pipeline) execute(ctx context.Context, r intent.Resolved) (template.ID, []database.Row, *query.Error) {
	id, err := template.Select(r.Intent())
	if err != nil {
		return "", nil, query.ExecutionFailed(query.ReasonTemplateError, err)
	}
	p.tr.TemplateSelected(string(id))

	sql, err := p.svc.templates.Load(ctx, id)
	if err != nil {
		return id, nil, query.ExecutionFailed(query.ReasonTemplateError, err)
	}
	params, err := query.BuildParams(r)
	if err != nil {
		return id, nil, query.ExecutionFailed(query.ReasonTemplateError, err)
	}
	if p.tr.Enabled() {
		p.tr.SQLParamTypes(query.ParamTypes(params))
	}

	stageCtx, span := pdotel.StartStageSpan(ctx, "execute")
	rows, err := p.svc.exec.Execute(stageCtx, sql, params)
	pdotel.EndSpan(span, err)
	if err != nil {
		reason := query.ReasonStoreError
		if errors.Is(err, resilience.ErrCircuitOpen) {
			reason = query.ReasonStoreUnavailable
		}
		return id, nil, query.ExecutionFailed(reason, fmt.Errorf("execute %s: %w", id, err))
	}
	p.tr.RowsReturned(len(rows))
	return id, rows, nil
}

func (p *pipeline) buildResult(i intent.Intent, id template.ID, rows []database.Row, cov coverage.Result, missing []string) *query.Result {
	return &query.Result{
		Intent: intent.Envelope{Intent: i},
		Result: query.FormatPayload(i.Kind(), rows),
		Interpretation: query.Interpretation{
			Summary:            query.Summarize(i, cov.Level, cov.SharedEvents),
			ConfidenceLevel:    cov.Level,
			CoveragePercent:    cov.CoveragePercent,
			SharedEvents:       cov.SharedEvents,
			MethodologyVersion: p.svc.cache.Versions().Methodology,
			Partial:            len(missing) > 0,
			Missing:            missing,
		},
		Metadata: query.Metadata{
			TemplateID: string(id),
			DataScope:  query.DataScope(i),
			RowCount:   len(rows),
			ExecutedAt: p.svc.now().UTC(),
		},
	}
}

// cacheWrite stores res. Failures are logged; the request still succeeds.
func (p *pipeline) cacheWrite(ctx context.Context, key string, i intent.Intent, res *query.Result, cov coverage.Result) {
	entry, err := p.svc.cache.NewEntry(key, i, res, cov)
	if err != nil {
		slog.WarnContext(ctx, "cache entry not built", "key", querycache.KeyPrefix(key), "error", err)
		return
	}
	if _, err := p.svc.cache.Set(ctx, entry); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", querycache.KeyPrefix(key), "error", err)
		return
	}
	p.tr.Cached(querycache.KeyPrefix(key), cov.TTLSeconds())
}

// dualMissing applies the partial result rule of the dual teammate
// comparison: one null gap is partial, two is no data.
func dualMissing(kind intent.Kind, rows []database.Row, id template.ID) ([]string, *query.Error) {
	if kind != intent.KindTeammateGapDualComparison {
		return nil, nil
	}
	var missing []string
	for _, col := range []string{colQualifyingGap, colRaceGap} {
		if rows[0][col] == nil {
			missing = append(missing, col)
		}
	}
	if len(missing) == 2 {
		return nil, query.InsufficientData(string(id))
	}
	return missing, nil
}

// asQueryError keeps a *query.Error as is and wraps anything else as an
// execution failure with reason.
func asQueryError(err error, reason string) *query.Error {
	if qe, ok := query.AsError(err); ok {
		return qe
	}
	return query.ExecutionFailed(reason, err)
}
