// Package config loads the seqchat configuration.
// Configuration is read once at startup from a YAML file with environment
// overrides for secrets and service URLs. Nothing is hot-reloaded.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the merged seqchat configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      LLMConfig      `yaml:"llm"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen      string   `yaml:"listen"`      // Address to listen on (e.g. ":8080")
	DevMode     bool     `yaml:"devMode"`     // Include raw error detail in responses
	CORSOrigins []string `yaml:"corsOrigins"` // Allowed browser origins
}

// UploadsConfig holds uploaded-file storage settings.
type UploadsConfig struct {
	Dir       string `yaml:"dir"`       // Base directory for stored uploads
	MaxSizeMB int64  `yaml:"maxSizeMB"` // Per-file size limit
}

// OllamaConfig holds local-inference settings.
type OllamaConfig struct {
	URL          string `yaml:"url"`          // Ollama base URL
	DefaultModel string `yaml:"defaultModel"` // Model served by default
}

// CloudConfig holds cloud-provider endpoint defaults.
type CloudConfig struct {
	DeepseekBaseURL string `yaml:"deepseekBaseURL"`
}

// AnalysisConfig holds the downstream analysis-service settings.
type AnalysisConfig struct {
	URL               string `yaml:"url"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
	MaxRetries        int    `yaml:"maxRetries"`
	RetryDelaySeconds int    `yaml:"retryDelaySeconds"`
}

// LLMConfig holds model-invocation settings shared by all providers.
type LLMConfig struct {
	ProbeTimeoutSeconds   int `yaml:"probeTimeoutSeconds"`   // Availability probe budget
	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"` // Full generate budget
	ContextWindow         int `yaml:"contextWindow"`         // Messages of history per request
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Uploads: UploadsConfig{
			Dir:       "uploads",
			MaxSizeMB: 100,
		},
		Ollama: OllamaConfig{
			URL:          "http://localhost:11434",
			DefaultModel: "gemma3:4b",
		},
		Cloud: CloudConfig{
			DeepseekBaseURL: "https://api.deepseek.com/v1",
		},
		Analysis: AnalysisConfig{
			URL:               "http://localhost:8001/analyze",
			TimeoutSeconds:    120,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
		},
		LLM: LLMConfig{
			ProbeTimeoutSeconds:   5,
			RequestTimeoutSeconds: 60,
			ContextWindow:         5,
		},
	}
}

// Load reads the configuration file at path (optional) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.LLM.ContextWindow <= 0 {
		cfg.LLM.ContextWindow = 5
	}
	if cfg.Analysis.MaxRetries < 1 {
		cfg.Analysis.MaxRetries = 1
	}

	return cfg, nil
}

// applyEnv overrides config values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SEQCHAT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_DEFAULT_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("ANALYSIS_URL"); v != "" {
		c.Analysis.URL = v
	}
	if v := os.Getenv("SEQCHAT_UPLOAD_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("SEQCHAT_UPLOAD_MAX_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Uploads.MaxSizeMB = n
		}
	}
}
