package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-go/pitch-relay/pkg/core/extract"
)

const (
	DefaultFrameMaxTokens  = 500
	DefaultAdviceMaxTokens = 300
)

const frameSystemPrompt = `You are an expert pitch coach analyzing presentation performance.
Focus on body language, facial expressions, and apparent confidence level.
Provide real-time feedback in a structured JSON format.`

const framePrompt = `Analyze this frame of a pitch presentation and provide scores and feedback in JSON format like this: {"confidence": (0-100), "engagement": (0-100), "clarity": (0-100), "feedback": "brief tip", "body_language": "observation", "expression": "observation"}`

const adviceTemplate = `I need some advice on %s. Can you provide me with some health advice based on the item I am about to consume.
Also get me the list ingredients that is on my plate. Here is how I want the JSON to be structured:
{
    "advice": (1 sentence max),
    "ingredients": (list)
}`

// FrameDataURL returns frame as an image URL. Frames that already carry a
// data: prefix are returned unchanged; bare base64 is assumed to be JPEG.
func FrameDataURL(frame string) string {
	if strings.HasPrefix(frame, "data:") {
		return frame
	}
	return "data:image/jpeg;base64," + frame
}

// FrameRequest builds the pitch coaching request for one frame.
func FrameRequest(frame string, maxTokens int64) Request {
	if maxTokens <= 0 {
		maxTokens = DefaultFrameMaxTokens
	}
	return Request{
		System:    frameSystemPrompt,
		Prompt:    framePrompt,
		ImageURL:  FrameDataURL(frame),
		MaxTokens: maxTokens,
	}
}

// AdviceRequest builds the food advice request. item is embedded as JSON
// text exactly as the client sent it.
func AdviceRequest(item json.RawMessage, maxTokens int64) Request {
	if maxTokens <= 0 {
		maxTokens = DefaultAdviceMaxTokens
	}
	return Request{
		Prompt:    fmt.Sprintf(adviceTemplate, compactJSON(item)),
		MaxTokens: maxTokens,
	}
}

// AnalyzeFrame submits frame for pitch analysis and extracts the scores.
// A provider failure is returned as-is; an unparseable reply is returned as
// an *extract.Failure.
func AnalyzeFrame(ctx context.Context, c Completer, frame string, maxTokens int64) (extract.Result, error) {
	return completeJSON(ctx, c, FrameRequest(frame, maxTokens))
}

// Advice asks for health advice and an ingredient list for item.
func Advice(ctx context.Context, c Completer, item json.RawMessage, maxTokens int64) (extract.Result, error) {
	return completeJSON(ctx, c, AdviceRequest(item, maxTokens))
}

func completeJSON(ctx context.Context, c Completer, req Request) (extract.Result, error) {
	if c == nil {
		return nil, errMissingConfig()
	}
	reply, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return extract.Extract(reply)
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
