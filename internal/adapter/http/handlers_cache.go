package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/service"
)

type invalidateResponse struct {
	Removed int64 `json:"removed"`
}

// CacheStats handles GET /api/v1/cache/stats
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Cache.Stats(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SweepCache handles POST /api/v1/cache/sweep
func (h *Handlers) SweepCache(w http.ResponseWriter, r *http.Request) {
	report, err := h.Maintenance.Sweep(r.Context())
	if errors.Is(err, service.ErrSweepInProgress) {
		writeError(w, http.StatusConflict, "sweep already in progress")
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// InvalidateEntry handles DELETE /api/v1/cache/entries/{key}
func (h *Handlers) InvalidateEntry(w http.ResponseWriter, r *http.Request) {
	key := urlParam(r, "key")
	n, err := h.Cache.Invalidate(r.Context(), key)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if n == 0 {
		writeDomainError(w, domain.ErrNotFound, "cache entry not found")
		return
	}
	writeJSON(w, http.StatusOK, invalidateResponse{Removed: n})
}

// InvalidateKind handles DELETE /api/v1/cache/kinds/{kind}
func (h *Handlers) InvalidateKind(w http.ResponseWriter, r *http.Request) {
	kind := intent.Kind(urlParam(r, "kind"))
	if !kind.Valid() {
		writeDomainError(w, fmt.Errorf("%w: unknown kind %q", domain.ErrValidation, kind), "invalid kind")
		return
	}
	n, err := h.Cache.InvalidateKind(r.Context(), kind)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invalidateResponse{Removed: n})
}
