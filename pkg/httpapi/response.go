// Package httpapi provides the HTTP-layer helpers shared by the user and
// order services: error-to-status mapping, JSON encode/decode, and the
// middleware chain (request id, rate limiting, metrics).
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ordersync/platform/pkg/platformerrors"
)

// Problem is the structured validation/error body returned to callers.
type Problem struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a platformerrors sentinel to the status codes of spec.md
// §6/§7 and writes a structured Problem body. The 499 code has no net/http
// constant; it is the nginx/community convention for "client closed request"
// that spec.md calls for explicitly.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if err == nil {
		return
	}

	status, code, msg := classify(err)

	if logger != nil {
		logger.Error("request failed", "status", status, "code", code, "err", err)
	}

	WriteJSON(w, status, Problem{Error: code, Message: msg})
}

const statusClientClosedRequest = 499

func classify(err error) (status int, code, message string) {
	switch {
	case platformerrors.Is(err, platformerrors.ErrValidation):
		return http.StatusBadRequest, "validation_failed", err.Error()
	case platformerrors.Is(err, platformerrors.ErrConflict):
		return http.StatusConflict, "conflict", err.Error()
	case platformerrors.Is(err, platformerrors.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case platformerrors.Is(err, platformerrors.ErrCancelled):
		return statusClientClosedRequest, "client_closed_request", "the request was cancelled"
	case platformerrors.Is(err, platformerrors.ErrTransient):
		return http.StatusServiceUnavailable, "service_unavailable", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "an internal error occurred"
	}
}

// DecodeJSON decodes the request body into v, returning ErrValidation on
// malformed JSON so handlers can funnel it through the same error path.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return platformerrors.Wrap(platformerrors.ErrValidation, err.Error())
	}
	return nil
}
