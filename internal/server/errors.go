package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/tartil/internal/observe"
)

// HTTPError is an error with the status code and client-facing message the
// API should answer with. Details is optional extra context for the client.
type HTTPError struct {
	Status  int
	Message string
	Details any
	Err     error
}

// Error implements error.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *HTTPError) Unwrap() error { return e.Err }

func httpError(status int, msg string) *HTTPError {
	return &HTTPError{Status: status, Message: msg}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details"`
}

// writeError renders err as {"error": ..., "details": ...}. Errors that are
// not an [*HTTPError] become a 500 with a generic message. Server errors are
// logged at error level, client errors at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *HTTPError
	if !errors.As(err, &he) {
		he = &HTTPError{Status: http.StatusInternalServerError, Message: "Unexpected error", Err: err}
	}
	log := observe.Logger(r.Context())
	if he.Status >= http.StatusInternalServerError {
		log.Error("server error", "path", r.URL.Path, "status", he.Status, "err", he)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", he.Status, "err", he)
	}
	writeJSON(w, he.Status, errorBody{Error: he.Message, Details: he.Details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"Unexpected error","details":null}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
