package ai

import (
	"fmt"
	"sort"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Hosted providers
	APIKey  string
	BaseURL string
	// Ollama
	Host string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// NewRuntime creates a Runtime for a registered provider.
func NewRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", name, Providers())
	}
	return f(cfg), nil
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, openRouterURL, retryPolicy{attempts: c.RetryMax, base: c.BaseDelay, max: c.MaxDelay}, c.HTTPTimeout).
			withBaseURL(c.BaseURL)
	})
	RegisterRuntime(ProviderOpenAI, func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, openAIURL, retryPolicy{attempts: c.RetryMax, base: c.BaseDelay, max: c.MaxDelay}, c.HTTPTimeout).
			withBaseURL(c.BaseURL)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		rp := retryPolicy{attempts: c.RetryMax, base: c.BaseDelay, max: c.MaxDelay}
		if rp.attempts <= 0 {
			rp.attempts = 2
		}
		if rp.base <= 0 {
			rp.base = 200 * time.Millisecond
		}
		if rp.max <= 0 {
			rp.max = time.Second
		}
		return NewOllamaClient(c.Host, rp, c.HTTPTimeout)
	})
}
