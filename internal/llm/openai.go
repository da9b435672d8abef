// Package llm wraps the chat-completion and embedding endpoints used by the
// agent pipeline. The provider is OpenAI-compatible; DashScope-hosted models
// work through a custom base URL.
package llm

import (
	"context"

	"github.com/finagent-ai/finagent"
	openai "github.com/sashabaranov/go-openai"
)

// Client is the production LLM implementation.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel sets the chat model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float32) ClientOption {
	return func(c *Client) {
		c.temperature = temperature
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// NewClient creates a chat-completion client. baseURL may be empty for the
// default OpenAI endpoint, or an OpenAI-compatible endpoint such as
// DashScope's compatible-mode URL.
func NewClient(apiKey, baseURL string, options ...ClientOption) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	c := &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       "qwen-plus",
		temperature: 0.1,
		maxTokens:   2000,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ finagent.LLM = (*Client)(nil)

// Complete sends a single-prompt chat completion and returns the text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", finagent.NewInternalError("llm", "completion returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embedder produces dense vectors for index builds and retrieval.
type Embedder struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// NewEmbedder creates an embedding client against the same provider.
func NewEmbedder(apiKey, baseURL, model string) *Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "text-embedding-v2"
	}
	return &Embedder{
		api:   openai.NewClientWithConfig(cfg),
		model: openai.EmbeddingModel(model),
	}
}

// Embed returns the embedding vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, finagent.NewInternalError("embedding", "embedding response was empty", nil)
	}
	return resp.Data[0].Embedding, nil
}
