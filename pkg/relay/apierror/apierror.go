package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/extract"
)

// Envelope is the flat error body every route returns.
type Envelope struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func FromError(err error) (Envelope, int) {
	if err == nil {
		return Envelope{}, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return Envelope{Error: "request timeout"}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return Envelope{Error: "request cancelled"}, http.StatusRequestTimeout
	}

	// A reply that held no usable JSON is still a successful round trip.
	var failure *extract.Failure
	if errors.As(err, &failure) && failure != nil {
		return Envelope{Error: failure.Message}, http.StatusOK
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		status := coreErr.Status
		if status == 0 {
			status = statusFromType(coreErr.Type)
		}
		return Envelope{Error: coreErr.Message, Details: coreErr.Details}, status
	}

	// Unknown errors: treat as internal API error (do not leak details by default).
	return Envelope{Error: "internal error"}, http.StatusInternalServerError
}

// Write encodes env as the JSON response body.
func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteError maps err and writes it.
func WriteError(w http.ResponseWriter, err error) {
	env, status := FromError(err)
	Write(w, status, env)
}

func statusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrExtraction:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
