package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/relay/apierror"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	"github.com/vango-go/pitch-relay/pkg/relay/metrics"
	"github.com/vango-go/pitch-relay/pkg/relay/mw"
)

const msgItemRequired = "Item description is required"

// AdviceHandler handles POST /advice. The body is any JSON value describing
// a food item; the reply is the extracted {"advice","ingredients"} object.
type AdviceHandler struct {
	Config  config.Config
	Vision  vision.Completer
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

func (h AdviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	raw, err := readBody(w, r, h.Config.MaxBodyBytes)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	item, err := parseItem(raw)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}

	start := time.Now()
	result, err := vision.Advice(r.Context(), h.Vision, item, h.Config.AdviceMaxTokens)
	h.Metrics.RecordProviderCall(providerName(h.Vision), "advice", metrics.Outcome(err), time.Since(start))
	if err != nil {
		if h.Logger != nil {
			reqID, _ := mw.RequestIDFrom(r.Context())
			h.Logger.Error("advice failed", "request_id", reqID, "error", err)
		}
		apierror.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseItem rejects empty descriptions: no body, null, "", {} and [].
func parseItem(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, core.NewInvalidRequestError(msgItemRequired)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, core.NewInvalidRequestError(msgInvalidJSON)
	}
	switch t := v.(type) {
	case nil:
		return nil, core.NewInvalidRequestError(msgItemRequired)
	case string:
		if t == "" {
			return nil, core.NewInvalidRequestError(msgItemRequired)
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, core.NewInvalidRequestError(msgItemRequired)
		}
	case []any:
		if len(t) == 0 {
			return nil, core.NewInvalidRequestError(msgItemRequired)
		}
	}
	return json.RawMessage(raw), nil
}
