package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lifeline-ng/lifeline/internal/ingest"
	"github.com/lifeline-ng/lifeline/internal/model"
	"github.com/lifeline-ng/lifeline/internal/search"
	"github.com/lifeline-ng/lifeline/internal/store"
)

// apiError is a client-facing failure with a stable machine-readable code.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func badRequest(code, msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: msg}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps domain errors onto HTTP responses.
func classify(err error) *apiError {
	var ae *apiError
	switch {
	case eris.As(err, &ae):
		return ae
	case eris.Is(err, store.ErrNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "Provider not found"}
	case eris.Is(err, model.ErrInvalidProviderType):
		return badRequest("invalid_provider_type", "Invalid providerType")
	case eris.Is(err, search.ErrInvalidQuery):
		return badRequest("invalid_request", rootMessage(err))
	case eris.Is(err, store.ErrDuplicate):
		return &apiError{Status: http.StatusConflict, Code: "duplicate_provider", Message: "Provider already exists"}
	case eris.Is(err, ingest.ErrImportInProgress):
		return &apiError{Status: http.StatusConflict, Code: "import_in_progress", Message: "An import is already running"}
	default:
		return &apiError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "Unexpected server error"}
	}
}

// rootMessage returns the outermost wrap message, which carries the detail
// of a validation error.
func rootMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if ae.Status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, ae.Status, errorBody{Error: errorDetail{Code: ae.Code, Message: ae.Message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// envelope wraps successful payloads.
type envelope struct {
	Data any   `json:"data"`
	Meta *meta `json:"meta,omitempty"`
}

type meta struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}
