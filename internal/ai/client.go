package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	OpenAIName      = "openai"
	HuggingFaceName = "huggingface"
)

var ErrNoAPIKey = errors.New("api key is not set")

// ChatConfig configures a provider that speaks the OpenAI chat-completions
// protocol. The Hugging Face router exposes the same protocol.
type ChatConfig struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Note    string
}

// ChatProvider decomposes goals through a chat-completions endpoint.
type ChatProvider struct {
	client *openai.Client
	cfg    ChatConfig
}

func NewChatProvider(cfg ChatConfig) *ChatProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &ChatProvider{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}
}

// NewOpenAI returns the provider for api.openai.com (or a compatible
// baseURL).
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *ChatProvider {
	return NewChatProvider(ChatConfig{
		Name:    OpenAIName,
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		Timeout: timeout,
		Note:    "Generated via OpenAI chat.completions endpoint.",
	})
}

// NewHuggingFace returns the provider for the Hugging Face inference router.
func NewHuggingFace(apiKey, model, baseURL string, timeout time.Duration) *ChatProvider {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1"
	}
	return NewChatProvider(ChatConfig{
		Name:    HuggingFaceName,
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		Timeout: timeout,
		Note:    "Generated via Hugging Face Inference API.",
	})
}

func (p *ChatProvider) Name() string { return p.cfg.Name }

func (p *ChatProvider) Decompose(ctx context.Context, goal string) (Result, error) {
	if p.cfg.APIKey == "" {
		return Result{}, providerErr(p.cfg.Name, "config", ErrNoAPIKey)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: decomposeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(goal)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return Result{}, providerErr(p.cfg.Name, "chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, providerErr(p.cfg.Name, "parse", fmt.Errorf("response has no choices"))
	}

	subgoals, err := ParseSubgoals(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{}, providerErr(p.cfg.Name, "parse", err)
	}

	return Result{
		Subgoals: subgoals,
		Meta: Meta{
			Model:    p.cfg.Model,
			Source:   p.cfg.Name,
			Provider: p.cfg.Name,
			Note:     p.cfg.Note,
		},
	}, nil
}
