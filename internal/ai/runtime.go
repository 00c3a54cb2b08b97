package ai

import (
	"context"
	"strings"
)

// Runtime is implemented by every model backend the narrator can call.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers accepted in configuration.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks OpenAI-compatible providers for a JSON object reply.
type ResponseFormat struct {
	Type string `json:"type"`
}

type GenerateRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// JSONMode requests a JSON object reply.
func (r GenerateRequest) JSONMode() GenerateRequest {
	r.ResponseFormat = &ResponseFormat{Type: "json_object"}
	return r
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, trimmed.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}
