package debugtrace

import (
	"context"
	"testing"
	"time"
)

func TestDisabledTracer(t *testing.T) {
	tr := New(false, "abc")
	if tr != nil {
		t.Fatal("disabled tracer must be nil")
	}
	n := 3
	tr.IntentParsed("driver_ranking")
	tr.IdentityResolved("driver_id", "max", "max_verstappen")
	tr.TemplateSelected("driver_ranking_v1")
	tr.CacheHit("abc")
	tr.CacheMiss("abc")
	tr.CacheBypass("abc", "debug")
	tr.SQLParamTypes([]string{"int"})
	tr.RowsReturned(4)
	tr.Coverage("valid", &n)
	tr.TeammatesConfirmed("red_bull")
	tr.Cached("abc", 3600)
	tr.Failed(StageResolving, "identity_not_found", "driver_id")
	tr.Timing("execute", time.Second)
	if tr.Enabled() {
		t.Error("nil tracer reports enabled")
	}
	if got := tr.Finish(); got != nil {
		t.Errorf("Finish = %+v, want nil", got)
	}
}

func TestDisabledTracerDoesNotAllocate(t *testing.T) {
	var tr *Tracer
	ctx := context.Background()
	sample := 8
	types := []string{"int", "string"}
	allocs := testing.AllocsPerRun(100, func() {
		tr = FromContext(WithTracer(ctx, tr))
		tr.IntentParsed("driver_ranking")
		tr.IdentityResolved("driver_id", "checo", "sergio_perez")
		tr.TeammatesConfirmed("red_bull")
		tr.TemplateSelected("driver_ranking_v1")
		tr.CacheHit("k")
		tr.CacheMiss("k")
		tr.CacheBypass("k", "force_refresh")
		tr.SQLParamTypes(types)
		tr.RowsReturned(1)
		tr.Coverage("valid", &sample)
		tr.Cached("k", 60)
		tr.Failed(StageExecuting, "execution_failed", "STORE_ERROR")
		tr.Timing(StageExecuting, time.Millisecond)
		_ = tr.Finish()
	})
	if allocs != 0 {
		t.Errorf("allocs = %v", allocs)
	}
}

func TestEnabledTracerRecordsSteps(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := New(true, "trace-1")
	tr.now = func() time.Time { return clock }
	tr.start = clock

	tr.IntentParsed("season_driver_vs_driver")
	tr.IdentityResolved("driver_a_id", "Max", "max_verstappen")
	tr.TemplateSelected("season_driver_vs_driver_normalized_v1")
	tr.CacheBypass("0123456789ab", "debug")
	tr.SQLParamTypes([]string{"int", "string", "string"})
	tr.RowsReturned(1)
	sample := 12
	tr.Coverage("valid", &sample)
	tr.Timing("execute", 25*time.Millisecond)
	clock = clock.Add(40 * time.Millisecond)

	got := tr.Finish()
	if got == nil {
		t.Fatal("expected trace")
	}
	if got.TraceID != "trace-1" {
		t.Errorf("trace id = %s", got.TraceID)
	}
	if len(got.Steps) != 7 {
		t.Errorf("steps = %d, want 7", len(got.Steps))
	}
	wantStages := []string{StageValidating, StageResolving, StageExecuting, StageCacheCheck, StageExecuting, StageExecuting, StageClassifying}
	for i, st := range got.Steps {
		if i < len(wantStages) && st.Stage != wantStages[i] {
			t.Errorf("step %d stage = %q, want %q", i, st.Stage, wantStages[i])
		}
	}
	if got.Identities[0].Before != "Max" || got.Identities[0].After != "max_verstappen" {
		t.Errorf("identities = %+v", got.Identities)
	}
	if got.Cache == nil || got.Cache.Status != "bypass" {
		t.Errorf("cache = %+v", got.Cache)
	}
	if got.RowCount == nil || *got.RowCount != 1 {
		t.Errorf("row count = %v", got.RowCount)
	}
	if got.TimingsMS["execute"] != 25 || got.TotalMS != 40 {
		t.Errorf("timings = %v total = %d", got.TimingsMS, got.TotalMS)
	}
	for _, typ := range got.SQLParamTypes {
		if typ == "max_verstappen" {
			t.Error("raw value leaked into trace")
		}
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Error("empty context must yield disabled tracer")
	}
	if WithTracer(ctx, nil) != ctx {
		t.Error("nil tracer must not wrap context")
	}
	tr := New(true, "x")
	if FromContext(WithTracer(ctx, tr)) != tr {
		t.Error("tracer not carried")
	}
}

func TestFailureAndCacheWriteSteps(t *testing.T) {
	tr := New(true, "trace-2")
	tr.TeammatesConfirmed("mclaren")
	tr.Cached("0123456789ab", 86400)
	tr.Failed(StageExecuting, "execution_failed", "INSUFFICIENT_DATA")

	steps := tr.Finish().Steps
	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(steps))
	}
	if steps[0].Stage != StageResolving || steps[0].Fields["team_id"] != "mclaren" {
		t.Errorf("teammates step = %+v", steps[0])
	}
	if steps[1].Stage != StageCacheWrite || steps[1].Fields["ttl_seconds"] != int64(86400) {
		t.Errorf("cached step = %+v", steps[1])
	}
	last := steps[2]
	if last.Stage != StageExecuting || last.Message != "failed" || last.Fields["reason"] != "INSUFFICIENT_DATA" {
		t.Errorf("failed step = %+v", last)
	}
}
