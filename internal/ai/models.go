package ai

import "strings"

// ModelInfo is the little we need to know about a model: its context window.
type ModelInfo struct {
	Name          string
	ContextTokens int
}

// defaultContextTokens is assumed for models missing from the catalog.
const defaultContextTokens = 8192

var models = map[string]ModelInfo{
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", ContextTokens: 128000},
	"openai/gpt-4o":               {Name: "openai/gpt-4o", ContextTokens: 128000},
	"gpt-4-turbo":                 {Name: "gpt-4-turbo", ContextTokens: 128000},
	"gpt-4o-mini":                 {Name: "gpt-4o-mini", ContextTokens: 128000},
	"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000},
	"anthropic/claude-3-haiku":    {Name: "anthropic/claude-3-haiku", ContextTokens: 200000},
	"google/gemini-1.5-flash":     {Name: "google/gemini-1.5-flash", ContextTokens: 1000000},
	"deepseek/deepseek-r1:free":   {Name: "deepseek/deepseek-r1:free", ContextTokens: 128000},
	"llama3":                      {Name: "llama3", ContextTokens: 8192},
	"llama3.1":                    {Name: "llama3.1", ContextTokens: 128000},
	"qwen2.5":                     {Name: "qwen2.5", ContextTokens: 32768},
}

// LookupModel returns catalog info for name. Ollama tags (":latest") are ignored.
func LookupModel(name string) (ModelInfo, bool) {
	if mi, ok := models[name]; ok {
		return mi, true
	}
	if i := strings.LastIndex(name, ":"); i > 0 && !strings.Contains(name, "/") {
		if mi, ok := models[name[:i]]; ok {
			return mi, true
		}
	}
	return ModelInfo{}, false
}

// ContextWindow returns the model's context size, or a conservative default.
func ContextWindow(name string) int {
	if mi, ok := LookupModel(name); ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return defaultContextTokens
}
