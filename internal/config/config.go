package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
)

// Global configuration structure.
type Global struct {
	// Analysis constants
	NumericThreshold   float64  `mapstructure:"numeric_threshold" yaml:"numeric_threshold"`
	IQRMultiplier      float64  `mapstructure:"iqr_multiplier" yaml:"iqr_multiplier"`
	BarTopN            int      `mapstructure:"bar_top_n" yaml:"bar_top_n"`
	PieTopN            int      `mapstructure:"pie_top_n" yaml:"pie_top_n"`
	Strategies         []string `mapstructure:"strategies" yaml:"strategies"`
	CorrelationInsight bool     `mapstructure:"correlation_insight" yaml:"correlation_insight"`

	// Decoding and reporting
	MaxRows    int `mapstructure:"max_rows" yaml:"max_rows"`
	SampleRows int `mapstructure:"sample_rows" yaml:"sample_rows"`

	// HTTP API
	ServerAddr  string `mapstructure:"server_addr" yaml:"server_addr"`
	CacheSize   int    `mapstructure:"cache_size" yaml:"cache_size"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// Remote analysis service
	RemoteURL        string `mapstructure:"remote_url" yaml:"remote_url"`
	RemoteTimeoutSec int    `mapstructure:"remote_timeout_sec" yaml:"remote_timeout_sec"`

	// Narrative generation
	Narrate         bool    `mapstructure:"narrate" yaml:"narrate"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`
}

// configDir is ~/.dataloom.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dataloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("numeric_threshold", 0.5)
	v.SetDefault("iqr_multiplier", 1.5)
	v.SetDefault("bar_top_n", 10)
	v.SetDefault("pie_top_n", 6)
	v.SetDefault("strategies", analysis.DefaultStrategies)
	v.SetDefault("correlation_insight", false)
	v.SetDefault("max_rows", 0)
	v.SetDefault("sample_rows", 5)
	v.SetDefault("server_addr", ":8000")
	v.SetDefault("cache_size", 64)
	v.SetDefault("max_upload_mb", 25)
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_timeout_sec", 120)
	v.SetDefault("narrate", false)
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", ai.ProviderOpenRouter)
	v.SetDefault("max_tokens", 800)
	v.SetDefault("temperature", 0.35)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (DATALOOM_*, .env included) > config file > defaults.
// Flags are applied by the commands on top of the returned value.
func Load(cfgFile string) (*Global, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DATALOOM")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Validate reports the first invalid setting.
func (c *Global) Validate() error {
	switch {
	case c.NumericThreshold <= 0 || c.NumericThreshold > 1:
		return fmt.Errorf("numeric_threshold must be in (0,1], got %v", c.NumericThreshold)
	case c.IQRMultiplier <= 0:
		return fmt.Errorf("iqr_multiplier must be > 0, got %v", c.IQRMultiplier)
	case len(c.Strategies) != len(analysis.DefaultStrategies):
		return fmt.Errorf("strategies must have exactly %d entries, got %d", len(analysis.DefaultStrategies), len(c.Strategies))
	case c.BarTopN <= 0 || c.PieTopN <= 0:
		return fmt.Errorf("bar_top_n and pie_top_n must be > 0")
	case c.MaxRows < 0 || c.SampleRows < 0:
		return fmt.Errorf("max_rows and sample_rows must be >= 0")
	case c.CacheSize <= 0:
		return fmt.Errorf("cache_size must be > 0, got %d", c.CacheSize)
	case c.MaxUploadMB <= 0:
		return fmt.Errorf("max_upload_mb must be > 0, got %d", c.MaxUploadMB)
	}
	if c.Narrate {
		if _, err := ai.NewRuntime(c.DefaultProvider, ai.RuntimeConfig{}); err != nil {
			return fmt.Errorf("default_provider: %w", err)
		}
	}
	return nil
}

// AnalysisOptions maps the analysis constants onto engine options.
func (c *Global) AnalysisOptions() analysis.Options {
	opt := analysis.DefaultOptions()
	opt.NumericThreshold = c.NumericThreshold
	opt.IQRMultiplier = c.IQRMultiplier
	opt.BarTopN = c.BarTopN
	opt.PieTopN = c.PieTopN
	opt.CorrelationInsight = c.CorrelationInsight
	if len(c.Strategies) > 0 {
		opt.Strategies = append([]string(nil), c.Strategies...)
	}
	return opt
}

// DecodeOptions returns the decoder settings implied by the config.
func (c *Global) DecodeOptions() dataset.DecodeOptions {
	opt := dataset.DefaultDecodeOptions()
	opt.MaxRows = c.MaxRows
	return opt
}

// RuntimeConfig returns provider settings for ai.NewRuntime.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
		Host:        c.OllamaHost,
	}
}

// RemoteTimeout is the upload timeout for the remote analysis service.
func (c *Global) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}

// MaxUploadBytes is max_upload_mb in bytes.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
