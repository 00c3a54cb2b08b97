package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1"
	openAIURL     = "https://api.openai.com/v1"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint
// (OpenRouter by default).
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      retryPolicy
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, openRouterURL, retryPolicy{}, 0)
}

// NewClient builds a client for baseURL. Zero retry fields and timeout take defaults.
func NewClient(apiKey, baseURL string, retry retryPolicy, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if baseURL == "" {
		baseURL = openRouterURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retry.normalized(),
	}
}

// NewClientWithBaseURL is NewClient with explicit retry knobs.
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	return NewClient(apiKey, baseURL, retryPolicy{attempts: retryMax, base: baseDelay, max: maxDelay}, httpTimeout)
}

func (c *Client) withBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
	return c
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key is missing (set DATALOOM_API_KEY or api_key)")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 1; attempt <= c.retry.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, wait, err := c.do(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.retry.attempts {
			break
		}
		if wait == 0 {
			wait = c.retry.delay(attempt)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs one attempt. wait < 0 means the error is final; wait > 0 is a
// server-requested delay; 0 means use backoff.
func (c *Client) do(ctx context.Context, endpoint string, payload []byte) (*GenerateResponse, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", "https://github.com/KaramelBytes/dataloom-cli")
	httpReq.Header.Set("X-Title", "DataLoom CLI")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isRetryableNetErr(err) {
			return nil, 0, fmt.Errorf("http request: %w", err)
		}
		return nil, -1, &UnreachableError{Host: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := readAPIError(resp)
		typed := classifyAPIError(apiErr, resp)
		if !isRetryableStatus(resp.StatusCode) {
			return nil, -1, typed
		}
		var rl *RateLimitError
		if errors.As(typed, &rl) && rl.RetryAfter > 0 {
			return nil, rl.RetryAfter, typed
		}
		return nil, 0, typed
	}
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, -1, fmt.Errorf("decode response: %w", err)
	}
	out.RequestID = extractRequestID(resp)
	return &out, 0, nil
}
