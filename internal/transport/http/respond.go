// Package http wires the chi router and shares the JSON response helpers
// used by every handler.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	derrors "skillhub/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures are logged by
// the caller's middleware; headers are already gone by then.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps a domain error onto its HTTP status and a JSON body.
// Non-domain errors come back as an opaque 500 so internals never leak.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	code := derrors.CodeOf(err)
	status := derrors.ToHTTPStatus(code)
	message := "internal error"
	if code != derrors.CodeInternal {
		var derr *derrors.Error
		if errors.As(err, &derr) {
			message = derr.Message
		}
	}
	if status >= 500 {
		log.Error("request failed", "error", err)
	}
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: string(code), Message: message}})
}
