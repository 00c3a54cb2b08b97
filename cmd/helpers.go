package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrative"
	"github.com/KaramelBytes/dataloom-cli/internal/remote"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if cfg != nil {
		base := cfg.RuntimeConfig()
		if base.HTTPTimeout > 0 {
			rc.HTTPTimeout = base.HTTPTimeout
		}
		if base.RetryMax > 0 {
			rc.RetryMax = base.RetryMax
		}
		if base.BaseDelay > 0 {
			rc.BaseDelay = base.BaseDelay
		}
		if base.MaxDelay > 0 {
			rc.MaxDelay = base.MaxDelay
		}
		rc.APIKey = base.APIKey
		rc.Host = base.Host
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil && cfg.DefaultProvider != "" {
		providerName = strings.ToLower(cfg.DefaultProvider)
	}
	if providerName == "" {
		providerName = ai.ProviderOpenRouter
	}
	switch providerName {
	case "local":
		providerName = ai.ProviderOllama
	case "anthropic", "google", "gemini", "meta", "llama":
		providerName = ai.ProviderOpenRouter
	}

	if rc.APIKey == "" {
		switch providerName {
		case ai.ProviderOpenAI:
			rc.APIKey = os.Getenv("OPENAI_API_KEY")
		case ai.ProviderOpenRouter:
			rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		}
	}
	if providerName == ai.ProviderOllama {
		if h := strings.TrimSpace(opts.OllamaHost); h != "" {
			rc.Host = h
		}
		if rc.Host == "" {
			rc.Host = "http://127.0.0.1:11434"
		}
	}

	client, err := ai.NewRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, fmt.Errorf("provider not supported: %w", err)
	}
	return client, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return "openai/gpt-4o-mini"
}

// parseDelimiter maps the --delimiter flag to a rune; "" keeps the default.
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

// buildAnalyzer returns the local engine, or remote-then-local when remoteURL is set.
func buildAnalyzer(c *cfgpkg.Global, dopt dataset.DecodeOptions, opt analysis.Options, remoteURL string, warn io.Writer) remote.Analyzer {
	local := remote.LocalAnalyzer{Decode: dopt, Options: opt}
	if remoteURL == "" {
		return local
	}
	client := remote.NewClient(remoteURL, c.RemoteTimeout())
	if c.RetryMaxAttempts > 0 {
		client.Retries = c.RetryMaxAttempts - 1
	}
	return remote.FallbackAnalyzer{
		Remote: client,
		Local:  local,
		OnFallback: func(err error) {
			fmt.Fprintf(warn, "⚠ Remote analysis failed (%v); analyzing locally.\n", err)
		},
	}
}

type narrateOptions struct {
	Provider string
	Model    string
	Runtime  ai.Runtime
	Warn     io.Writer
}

// narrateResult rewrites the summary and strategies with the model, keeping
// the deterministic result whenever the model cannot help.
func narrateResult(ctx context.Context, c *cfgpkg.Global, res *analysis.Result, opts narrateOptions) *analysis.Result {
	warn := opts.Warn
	if warn == nil {
		warn = os.Stderr
	}
	rt := opts.Runtime
	if rt == nil {
		r, name, err := buildRuntime(c, runtimeOptions{ProviderFlag: opts.Provider})
		if err != nil {
			fmt.Fprintf(warn, "⚠ Narrative skipped: %v\n", err)
			return res
		}
		debugf("narrative provider=%s", name)
		rt = r
	}
	n := &narrative.Narrator{Runtime: rt, Model: selectModel(c, opts.Model)}
	if c != nil {
		n.MaxTokens = c.MaxTokens
		n.Temperature = c.Temperature
	}
	out, err := n.Narrate(ctx, res)
	if err != nil {
		fmt.Fprintf(warn, "⚠ Narrative unavailable, keeping deterministic summary: %v\n", err)
		return res
	}
	return narrative.Apply(res, out)
}

type outputOptions struct {
	Format     string
	SampleRows int
	OutputPath string
	Quiet      bool
	Writer     io.Writer
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "md", "markdown", "json":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use md|json)", format)
}

// renderResult serializes a result as Markdown or JSON.
func renderResult(res *analysis.Result, format string, sampleRows int) ([]byte, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if strings.EqualFold(format, "json") {
		return utils.PrettyJSON(res)
	}
	return []byte(res.Markdown(sampleRows)), nil
}

func formatAndWriteOutput(res *analysis.Result, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	b, err := renderResult(res, opts.Format, opts.SampleRows)
	if err != nil {
		return err
	}
	if opts.OutputPath == "" {
		fmt.Fprintln(w, string(b))
		return nil
	}
	if err := utils.SafeWriteFile(opts.OutputPath, b); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "✓ Wrote analysis to %s\n", opts.OutputPath)
	}
	return nil
}

func outputExt(format string) string {
	if strings.EqualFold(format, "json") {
		return ".json"
	}
	return ".md"
}
