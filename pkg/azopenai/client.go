// Package azopenai wraps the Azure OpenAI chat-completions API behind a
// small interface the pipeline can mock.
package azopenai

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Client defines the chat-completion operations used by the pipeline.
type Client interface {
	// ChatJSON sends a system+user prompt pair in JSON mode and returns the
	// raw response text (which the model promises is a JSON object).
	ChatJSON(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is our own request type for ChatJSON.
type ChatRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float32
}

// ChatResponse is our own response type from ChatJSON.
type ChatResponse struct {
	Content string
	Usage   TokenUsage
}

// TokenUsage tracks token consumption for cost attribution.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Config holds Azure OpenAI connection settings.
type Config struct {
	Endpoint   string
	Deployment string
	Key        string
	APIVersion string

	// RequestsPerSecond caps outbound request rate. Zero disables limiting.
	RequestsPerSecond float64
}

type azureClient struct {
	client     *openai.Client
	deployment string
	limiter    *rate.Limiter
}

// NewClient creates an Azure OpenAI chat client.
func NewClient(cfg Config) Client {
	clientCfg := openai.DefaultAzureConfig(cfg.Key, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &azureClient{
		client:     openai.NewClientWithConfig(clientCfg),
		deployment: deployment,
		limiter:    limiter,
	}
}

func (c *azureClient) ChatJSON(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "azopenai: rate limiter")
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, eris.Wrap(err, "azopenai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("azopenai: empty choices in response")
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
