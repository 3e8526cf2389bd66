package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-go/pitch-relay/pkg/core"
)

func postAdvice(h AdviceHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/advice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAdviceHandler_Success(t *testing.T) {
	fake := &fakeCompleter{reply: "Here you go:\n```json\n{\"advice\": \"Add some greens.\", \"ingredients\": [\"bun\", \"patty\"]}\n```"}
	h := AdviceHandler{Config: testConfig(), Vision: fake}

	rr := postAdvice(h, `{"item":"cheeseburger"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "Add some greens.", body["advice"])
	assert.Equal(t, []any{"bun", "patty"}, body["ingredients"])

	reqs := fake.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, `{"item":"cheeseburger"}`)
	assert.EqualValues(t, 300, reqs[0].MaxTokens)
}

func TestAdviceHandler_EmptyDescriptions(t *testing.T) {
	for _, body := range []string{"", "   ", "null", "{}", `""`, "[]"} {
		fake := &fakeCompleter{}
		rr := postAdvice(AdviceHandler{Config: testConfig(), Vision: fake}, body)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d", body, rr.Code)
		}
		if got := decodeBody(t, rr)["error"]; got != "Item description is required" {
			t.Fatalf("body %q: error=%v", body, got)
		}
		if len(fake.requests()) != 0 {
			t.Fatalf("body %q: provider must not be called", body)
		}
	}
}

func TestAdviceHandler_MalformedJSON(t *testing.T) {
	rr := postAdvice(AdviceHandler{Config: testConfig(), Vision: &fakeCompleter{}}, `{"item":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid JSON body", decodeBody(t, rr)["error"])
}

func TestAdviceHandler_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 8
	rr := postAdvice(AdviceHandler{Config: cfg, Vision: &fakeCompleter{}}, `{"item":"a very long description"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAdviceHandler_ExtractionFailureIs200WithError(t *testing.T) {
	fake := &fakeCompleter{reply: "Sorry, I can't help with that."}
	rr := postAdvice(AdviceHandler{Config: testConfig(), Vision: fake}, `"apple"`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"error": "Could not extract JSON"}, decodeBody(t, rr))
}

func TestAdviceHandler_ProviderFailureIs500WithDetails(t *testing.T) {
	fake := &fakeCompleter{err: core.NewProviderError("openai", errors.New("chat completion: status 503"), map[string]any{"status": 503})}
	rr := postAdvice(AdviceHandler{Config: testConfig(), Vision: fake}, `{"item":"salad"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "openai: chat completion: status 503", body["error"])
	assert.Equal(t, map[string]any{"status": float64(503)}, body["details"])
}

func TestAdviceHandler_MissingProvider(t *testing.T) {
	rr := postAdvice(AdviceHandler{Config: testConfig()}, `{"item":"salad"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Missing API configuration", decodeBody(t, rr)["error"])
}

func TestAdviceHandler_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	AdviceHandler{Config: testConfig()}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/advice", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Allow"))
	assert.Equal(t, "Method not allowed", decodeBody(t, rr)["error"])
}
