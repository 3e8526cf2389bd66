package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/pitch-relay/pkg/core/vision"
	"github.com/vango-go/pitch-relay/pkg/core/voice/tts"
	"github.com/vango-go/pitch-relay/pkg/relay/config"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []vision.Request
}

func (f *fakeCompleter) Name() string  { return "fake" }
func (f *fakeCompleter) Model() string { return "fake-vision" }

func (f *fakeCompleter) Complete(_ context.Context, req vision.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeCompleter) requests() []vision.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vision.Request(nil), f.reqs...)
}

type fakeSpeech struct {
	audio []byte
	err   error
	texts []string
	opts  []tts.SynthesizeOptions
}

func (f *fakeSpeech) Name() string { return "fake-tts" }

func (f *fakeSpeech) Synthesize(_ context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	f.texts = append(f.texts, text)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Synthesis{Audio: f.audio, Format: tts.FormatMPEG}, nil
}

func testConfig() config.Config {
	return config.Config{
		VisionProvider:     config.VisionProviderOpenAI,
		FrameInterval:      20 * time.Millisecond,
		FrameMaxTokens:     500,
		AdviceMaxTokens:    300,
		MaxBodyBytes:       1 << 20,
		WSMaxMessageBytes:  1 << 20,
		WSPingInterval:     time.Second,
		WSPongTimeout:      5 * time.Second,
		WSWriteTimeout:     time.Second,
		CORSAllowedOrigins: map[string]struct{}{config.CORSWildcard: {}},
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %q: %v", rr.Body.String(), err)
	}
	return body
}
