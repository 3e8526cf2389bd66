package vision

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/vango-go/pitch-relay/pkg/core"
)

// DefaultOpenAIModel is the model used for frame analysis and advice.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI implements Completer against the Chat Completions API.
type OpenAI struct {
	client openai.Client
	model  string
	hasKey bool
}

// NewOpenAI creates an OpenAI completer. The SDK's automatic retries are
// disabled; a failed call is reported to the caller once.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	o := buildOptions(DefaultOpenAIModel, opts)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  o.model,
		hasKey: apiKey != "",
	}
}

func (p *OpenAI) Name() string  { return "openai" }
func (p *OpenAI) Model() string { return p.model }

// Complete sends a system message and a user message (text plus optional
// image) and returns the first choice's content.
func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if !p.hasKey {
		return "", errMissingConfig()
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
	}
	if req.ImageURL != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: req.ImageURL,
		}))
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(parts))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewProviderError(p.Name(), errors.New("no choices in response"), nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return core.NewProviderError("openai", fmt.Errorf("chat completion: status %d", apiErr.StatusCode), map[string]any{
			"status":  apiErr.StatusCode,
			"message": apiErr.Message,
		})
	}
	return core.NewProviderError("openai", fmt.Errorf("chat completion: %w", err), nil)
}
