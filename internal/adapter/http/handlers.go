package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Strob0t/paddock/internal/debugtrace"
	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/query"
	"github.com/Strob0t/paddock/internal/domain/template"
	"github.com/Strob0t/paddock/internal/service"
)

const defaultBodyLimit = 64 << 10

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Queries     *service.QueryService
	Cache       *service.CacheService
	Maintenance *service.CacheMaintenance
	Checks      []HealthCheck
	BodyLimit   int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

type queryRequest struct {
	Intent  json.RawMessage `json:"intent"`
	Options query.Options   `json:"options"`
}

type queryResponse struct {
	*query.Result
	Debug *debugtrace.Trace `json:"debug,omitempty"`
}

// Query handles POST /api/v1/query
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[queryRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if len(req.Intent) == 0 {
		writeQueryError(w, query.ValidationFailed(fmt.Errorf("%w: intent is required", domain.ErrValidation)), nil)
		return
	}
	in, err := intent.Decode(req.Intent)
	if err != nil {
		writeQueryError(w, query.ValidationFailed(err), nil)
		return
	}

	res, trace, err := h.Queries.Execute(r.Context(), in, req.Options)
	if err != nil {
		qe, ok := query.AsError(err)
		if !ok {
			writeInternalError(w, err)
			return
		}
		writeQueryError(w, qe, trace)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Result: res, Debug: trace})
}

type kindCapability struct {
	Kind      intent.Kind   `json:"kind"`
	Templates []template.ID `json:"templates"`
	Coverage  coverage.Rule `json:"coverage"`
	Teammates bool          `json:"requires_teammates,omitempty"`
}

type capabilitiesResponse struct {
	Kinds              []kindCapability `json:"kinds"`
	MethodologyVersion string           `json:"methodology_version"`
	SchemaVersion      string           `json:"schema_version"`
}

// Capabilities handles GET /api/v1/capabilities
func (h *Handlers) Capabilities(w http.ResponseWriter, _ *http.Request) {
	kinds := make([]kindCapability, 0, len(intent.Kinds))
	for _, k := range intent.Kinds {
		kinds = append(kinds, kindCapability{
			Kind:      k,
			Templates: template.Candidates(k),
			Coverage:  coverage.RuleFor(k),
			Teammates: intent.RequiresTeammates(k),
		})
	}
	v := h.Cache.Versions()
	writeJSON(w, http.StatusOK, capabilitiesResponse{
		Kinds:              kinds,
		MethodologyVersion: v.Methodology,
		SchemaVersion:      v.Schema,
	})
}
