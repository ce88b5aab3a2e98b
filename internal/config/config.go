// Package config loads Testwise settings from an optional YAML file with
// environment overrides. Zero configuration works: every field has a default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML can use strings like "30s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all tunable settings.
type Config struct {
	// Listen is the web UI bind address.
	Listen string `yaml:"listen"`
	// Model is the chat-completions model name.
	Model string `yaml:"model"`
	// APIBaseURL overrides the completions API root (proxies, test servers).
	APIBaseURL string `yaml:"api_base_url"`
	// TopFailures caps how many failure groups root-cause analysis covers.
	TopFailures int `yaml:"top_failures"`
	// ChunkSize bounds error groups per summary prompt.
	ChunkSize int `yaml:"chunk_size"`
	// RequestTimeout applies to each LLM API call.
	RequestTimeout Duration `yaml:"request_timeout"`
	// SessionTTL is how long an uploaded run stays in memory.
	SessionTTL Duration `yaml:"session_ttl"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:         ":8080",
		Model:          "gpt-4",
		TopFailures:    5,
		ChunkSize:      50,
		RequestTimeout: Duration(60 * time.Second),
		SessionTTL:     Duration(30 * time.Minute),
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads path (YAML) over the defaults, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TESTWISE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TESTWISE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("TESTWISE_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("TESTWISE_TOP_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TopFailures = n
		}
	}
	if v := os.Getenv("TESTWISE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TESTWISE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

func (c *Config) validate() error {
	if c.TopFailures <= 0 {
		return fmt.Errorf("top_failures must be positive, got %d", c.TopFailures)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
