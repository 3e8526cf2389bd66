package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/pitch-relay/pkg/core"
	"github.com/vango-go/pitch-relay/pkg/core/voice/tts"
	"github.com/vango-go/pitch-relay/pkg/relay/apierror"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
	"github.com/vango-go/pitch-relay/pkg/relay/metrics"
	"github.com/vango-go/pitch-relay/pkg/relay/mw"
)

const (
	msgTextRequired   = "Text is required"
	msgUnknownPersona = "Unknown voice persona"
	msgSpeechFailed   = "Failed to generate speech"
	personaPathValue  = "persona"
)

type ttsRequest struct {
	Text string `json:"text"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
	Format       string `json:"format"`
}

// TTSHandler serves POST /api/tts and POST /api/tts/{persona}. The persona
// path value selects the voice from Voices; the bare route uses the default.
type TTSHandler struct {
	Config  config.Config
	Voices  tts.Voices
	Speech  tts.Provider
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

func (h TTSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	persona := strings.TrimSpace(r.PathValue(personaPathValue))
	voiceID, ok := h.Voices.Lookup(persona)
	if !ok {
		apierror.WriteError(w, core.NewNotFoundError(msgUnknownPersona))
		return
	}

	raw, err := readBody(w, r, h.Config.MaxBodyBytes)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	text, err := parseText(raw)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}

	if h.Speech == nil {
		apierror.WriteError(w, core.NewConfigurationError("Missing API configuration"))
		return
	}

	start := time.Now()
	out, err := h.Speech.Synthesize(r.Context(), text, tts.SynthesizeOptions{
		Voice:  voiceID,
		Format: tts.FormatMPEG,
	})
	h.Metrics.RecordProviderCall(h.Speech.Name(), "tts", metrics.Outcome(err), time.Since(start))
	if err != nil {
		h.writeSpeechError(w, r, persona, err)
		return
	}

	format := out.Format
	if format == "" {
		format = tts.FormatMPEG
	}
	writeJSON(w, http.StatusOK, ttsResponse{
		AudioContent: base64.StdEncoding.EncodeToString(out.Audio),
		Format:       format,
	})
}

func (h TTSHandler) writeSpeechError(w http.ResponseWriter, r *http.Request, persona string, err error) {
	if h.Logger != nil {
		reqID, _ := mw.RequestIDFrom(r.Context())
		h.Logger.Error("tts failed", "request_id", reqID, "persona", persona, "error", err)
	}

	var ce *core.Error
	if errors.As(err, &ce) && ce.Type == core.ErrConfiguration {
		apierror.WriteError(w, ce)
		return
	}
	details := err.Error()
	if ce != nil {
		details = ce.Message
	}
	apierror.Write(w, http.StatusInternalServerError, apierror.Envelope{Error: msgSpeechFailed, Details: details})
}

func parseText(raw []byte) (string, error) {
	var req ttsRequest
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				return "", core.NewInvalidRequestError(msgInvalidJSON)
			}
		}
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", core.NewInvalidRequestError(msgTextRequired)
	}
	return req.Text, nil
}
