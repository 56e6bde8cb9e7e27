package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/paddock/internal/debugtrace"
	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/query"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// queryStatus maps a pipeline failure to its HTTP status.
func queryStatus(e *query.Error) int {
	switch e.Kind {
	case query.ErrValidationFailed:
		return http.StatusBadRequest
	case query.ErrIdentityNotFound:
		return http.StatusNotFound
	case query.ErrInvalidTeammatePair:
		return http.StatusUnprocessableEntity
	}
	switch e.Reason {
	case query.ReasonInsufficientData:
		return http.StatusUnprocessableEntity
	case query.ReasonStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// queryErrorResponse is the body of a failed query. Trace is set only for
// debug requests.
type queryErrorResponse struct {
	Error   query.ErrorKind   `json:"error"`
	Reason  string            `json:"reason"`
	Details map[string]any    `json:"details,omitempty"`
	Debug   *debugtrace.Trace `json:"debug,omitempty"`
}

func writeQueryError(w http.ResponseWriter, e *query.Error, trace *debugtrace.Trace) {
	writeJSON(w, queryStatus(e), queryErrorResponse{
		Error:   e.Kind,
		Reason:  e.Reason,
		Details: e.Details,
		Debug:   trace,
	})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeInternalError(w, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
