package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Strob0t/paddock/internal/domain/querycache"
)

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	r := querycache.MaintenanceReport{
		StaleVersionsRemoved: 3,
		ExpiredPurged:        2,
		LRUEvicted:           1,
		RemainingEntries:     40,
		VacuumSuggested:      true,
		DurationMS:           12,
	}
	if err := printReport(&buf, r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"stale versions", "total", "6", "remaining", "40", "vacuum suggested", "true", "12ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunMigrateRequiresSubcommand(t *testing.T) {
	if err := runMigrate(nil); err == nil {
		t.Fatal("expected error without subcommand")
	}
}

func TestRunCacheRejectsUnknownSubcommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "missing subcommand"},
		{[]string{"flush"}, "unknown cache command: flush"},
	}
	for _, tt := range tests {
		err := runCache(tt.args)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("runCache(%v) = %v, want %q", tt.args, err, tt.want)
		}
	}
}

func TestRunCacheRefusesMemoryBackend(t *testing.T) {
	t.Setenv("PADDOCK_CACHE_BACKEND", "memory")
	err := runCache([]string{"clear"})
	if err == nil || !strings.Contains(err.Error(), "memory cache backend") {
		t.Fatalf("runCache = %v, want memory backend refusal", err)
	}
}

func TestInstanceIDUnique(t *testing.T) {
	a, b := instanceID(), instanceID()
	if a == b {
		t.Errorf("instance ids collide: %s", a)
	}
}
