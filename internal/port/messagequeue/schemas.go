package messagequeue

import "github.com/Strob0t/paddock/internal/domain/querycache"

// MaintenanceReportPayload is the schema for cache.maintenance.report.
type MaintenanceReportPayload struct {
	Instance string                       `json:"instance"`
	Report   querycache.MaintenanceReport `json:"report"`
}

// CacheInvalidatedPayload is the schema for cache.invalidated.
type CacheInvalidatedPayload struct {
	Instance     string                  `json:"instance"`
	Invalidation querycache.Invalidation `json:"invalidation"`
}
