package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "numeric_threshold: %.3f\n", cfg.NumericThreshold)
		fmt.Fprintf(w, "iqr_multiplier: %.3f\n", cfg.IQRMultiplier)
		fmt.Fprintf(w, "bar_top_n: %d\n", cfg.BarTopN)
		fmt.Fprintf(w, "pie_top_n: %d\n", cfg.PieTopN)
		fmt.Fprintf(w, "correlation_insight: %t\n", cfg.CorrelationInsight)
		fmt.Fprintln(w, "strategies:")
		for _, s := range cfg.Strategies {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintf(w, "max_rows: %d\n", cfg.MaxRows)
		fmt.Fprintf(w, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(w, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(w, "cache_size: %d\n", cfg.CacheSize)
		fmt.Fprintf(w, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		if cfg.RemoteURL != "" {
			fmt.Fprintf(w, "remote_url: %s\n", cfg.RemoteURL)
		}
		fmt.Fprintf(w, "remote_timeout_sec: %d\n", cfg.RemoteTimeoutSec)
		fmt.Fprintf(w, "narrate: %t\n", cfg.Narrate)
		fmt.Fprintf(w, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(w, "default_model: %s\n", cfg.DefaultModel)
		fmt.Fprintf(w, "default_provider: %s\n", cfg.DefaultProvider)
		fmt.Fprintf(w, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(w, "ollama_host: %s\n", cfg.OllamaHost)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("refusing to save: %w", err)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	parseInt := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	parseFloat := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %w", key, err)
		}
		return f, nil
	}
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("invalid bool for %s: %w", key, err)
		}
		return b, nil
	}
	var err error
	switch key {
	case "numeric_threshold":
		c.NumericThreshold, err = parseFloat()
	case "iqr_multiplier":
		c.IQRMultiplier, err = parseFloat()
	case "bar_top_n":
		c.BarTopN, err = parseInt()
	case "pie_top_n":
		c.PieTopN, err = parseInt()
	case "correlation_insight":
		c.CorrelationInsight, err = parseBool()
	case "strategies":
		// Strategies are separated by "|".
		var list []string
		for _, s := range strings.Split(val, "|") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
		c.Strategies = list
	case "max_rows":
		c.MaxRows, err = parseInt()
	case "sample_rows":
		c.SampleRows, err = parseInt()
	case "server_addr":
		c.ServerAddr = val
	case "cache_size":
		c.CacheSize, err = parseInt()
	case "max_upload_mb":
		c.MaxUploadMB, err = parseInt()
	case "remote_url":
		c.RemoteURL = val
	case "remote_timeout_sec":
		c.RemoteTimeoutSec, err = parseInt()
	case "narrate":
		c.Narrate, err = parseBool()
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case ai.ProviderOpenRouter:
			c.DefaultProvider = ai.ProviderOpenRouter
		case ai.ProviderOpenAI:
			c.DefaultProvider = ai.ProviderOpenAI
		case ai.ProviderOllama, "local":
			c.DefaultProvider = ai.ProviderOllama
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, openai or ollama)", val)
		}
	case "max_tokens":
		c.MaxTokens, err = parseInt()
	case "temperature":
		c.Temperature, err = parseFloat()
	case "ollama_host":
		c.OllamaHost = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
