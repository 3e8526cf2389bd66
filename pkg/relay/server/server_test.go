package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/pitch-relay/pkg/relay/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                          "127.0.0.1:0",
		VisionProvider:                config.VisionProviderOpenAI,
		FrameInterval:                 20 * time.Millisecond,
		FrameMaxTokens:                500,
		AdviceMaxTokens:               300,
		MaxBodyBytes:                  1 << 20,
		WSMaxMessageBytes:             1 << 20,
		WSPingInterval:                time.Second,
		WSPongTimeout:                 5 * time.Second,
		WSWriteTimeout:                time.Second,
		CORSAllowedOrigins:            map[string]struct{}{config.CORSWildcard: {}},
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: 5 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func serve(s *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, http.MethodGet, "/does-not-exist", "", nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"error":"not found"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestServer_HealthAndReady(t *testing.T) {
	s := newTestServer(t, testConfig())

	if rr := serve(s, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := serve(s, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}

	s.SetDraining()
	if rr := serve(s, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("draining readyz status=%d", rr.Code)
	}
	if rr := serve(s, http.MethodGet, "/ws", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("draining ws status=%d", rr.Code)
	}
}

func TestServer_MissingKeysAnswerConfigurationError(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, http.MethodPost, "/advice", `{"item":"pizza"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Missing API configuration"}`, rr.Body.String())

	rr = serve(s, http.MethodPost, "/api/tts", `{"text":"hello"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Missing API configuration"}`, rr.Body.String())
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, http.MethodOptions, "/advice", "", http.Header{
		"Origin":                        {"https://app.example"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_TTSPersonaThroughElevenLabs(t *testing.T) {
	var gotPath, gotKey string
	eleven := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3"))
	}))
	defer eleven.Close()

	cfg := testConfig()
	cfg.ElevenLabsAPIKey = "xi-test"
	cfg.ElevenLabsBaseURL = eleven.URL
	s := newTestServer(t, cfg)

	rr := serve(s, http.MethodPost, "/api/tts/tusk", `{"text":"Hello there"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"audioContent":"bXAz","format":"audio/mpeg"}`, rr.Body.String())
	assert.Equal(t, "/v1/text-to-speech/pNInz6obpgDQGcFmaJgB", gotPath)
	assert.Equal(t, "xi-test", gotKey)

	rr = serve(s, http.MethodPost, "/api/tts/unknown", `{"text":"Hello"}`, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func fakeOpenAI(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply, _ := json.Marshal(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_AdviceThroughOpenAI(t *testing.T) {
	upstream := fakeOpenAI(t, "Sure!\n```json\n{\"advice\": \"Eat slowly.\", \"ingredients\": [\"rice\"]}\n```")

	cfg := testConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIBaseURL = upstream.URL
	s := newTestServer(t, cfg)

	rr := serve(s, http.MethodPost, "/advice", `{"item":"sushi"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"advice":"Eat slowly.","ingredients":["rice"]}`, rr.Body.String())

	metrics := serve(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `pitch_relay_http_requests_total{method="POST",route="/advice",status="200"} 1`)
	assert.Contains(t, metrics.Body.String(), `pitch_relay_provider_requests_total{operation="advice",outcome="ok",provider="openai"} 1`)
}

func TestServer_FramesEndToEnd(t *testing.T) {
	upstream := fakeOpenAI(t, `{"confidence": 88, "engagement": 70, "clarity": 65, "feedback": "Good eye contact."}`)

	cfg := testConfig()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIBaseURL = upstream.URL
	s := newTestServer(t, cfg)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var ev struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "connected", ev.Event)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0xd8, 0xff}))
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, "update", ev.Event)
	assert.JSONEq(t, `{"Result":{"confidence":88,"engagement":70,"clarity":65,"feedback":"Good eye contact."}}`, string(ev.Data))

	s.SetDraining()
	require.Equal(t, 1, s.WarnSessions())
	for ev.Event != "warning" {
		require.NoError(t, conn.ReadJSON(&ev))
	}

	s.CancelSessions()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, s.WaitSessions(ctx))
}

func TestNew_InvalidVoicesFile(t *testing.T) {
	cfg := testConfig()
	cfg.VoicesFile = t.TempDir() + "/missing.yaml"

	_, err := New(cfg, nil)
	require.Error(t, err)
}
