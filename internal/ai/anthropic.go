package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const AnthropicName = "anthropic"

// AnthropicProvider decomposes goals with the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	apiKey string
	model  string
}

func NewAnthropic(apiKey, model, baseURL string, timeout time.Duration) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// a failed call falls through to the next provider instead
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		apiKey: apiKey,
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string { return AnthropicName }

func (p *AnthropicProvider) Decompose(ctx context.Context, goal string) (Result, error) {
	if p.apiKey == "" {
		return Result{}, providerErr(AnthropicName, "config", ErrNoAPIKey)
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: decomposeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildUserPrompt(goal))),
		},
		Temperature: anthropic.Float(0.4),
	})
	if err != nil {
		return Result{}, providerErr(AnthropicName, "messages", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	subgoals, err := ParseSubgoals(text.String())
	if err != nil {
		return Result{}, providerErr(AnthropicName, "parse", err)
	}

	return Result{
		Subgoals: subgoals,
		Meta: Meta{
			Model:    p.model,
			Source:   AnthropicName,
			Provider: AnthropicName,
			Note:     "Generated via Anthropic Messages API.",
		},
	}, nil
}
