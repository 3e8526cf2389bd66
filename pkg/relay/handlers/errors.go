package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/relay/apierror"
)

const (
	msgMethodNotAllowed = "Method not allowed"
	msgInvalidJSON      = "Invalid JSON body"
	msgBodyTooLarge     = "Request body too large"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	apierror.WriteError(w, core.NewInvalidRequestError(msgMethodNotAllowed).WithStatus(http.StatusMethodNotAllowed))
}

// readBody reads at most limit bytes. An oversized body is reported as a
// 413 invalid request.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.NewInvalidRequestError(msgBodyTooLarge).WithStatus(http.StatusRequestEntityTooLarge)
		}
		return nil, core.NewInvalidRequestError(msgInvalidJSON)
	}
	return raw, nil
}

func providerName(c vision.Completer) string {
	if c == nil {
		return "none"
	}
	return c.Name()
}
