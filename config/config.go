package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the circuit-diagram chatbot.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Search    SearchConfig    `yaml:"search"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CatalogConfig controls where catalog CSV files are found.
type CatalogConfig struct {
	Includes   []string `yaml:"includes"`
	Excludes   []string `yaml:"excludes"`
	SkipHeader bool     `yaml:"skip_header"`
}

// SearchConfig holds retrieval tuning.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	MinScore       float64 `yaml:"min_score"`
	MaxModelSegLen int     `yaml:"max_model_segment_len"`
}

// DialogueConfig holds narrowing and pagination settings.
type DialogueConfig struct {
	PageSize          int           `yaml:"page_size"`
	MaxDirectResults  int           `yaml:"max_direct_results"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	HistoryCapacity   int           `yaml:"history_capacity"`
	MaxCategories     int           `yaml:"max_categories"`
	HeuristicCoverage float64       `yaml:"heuristic_coverage"`
	SemanticCoverage  float64       `yaml:"semantic_coverage"`
}

// CacheConfig holds the three result caches.
type CacheConfig struct {
	MaxEntries        int           `yaml:"max_entries"`
	SearchTTL         time.Duration `yaml:"search_ttl"`
	InterpretationTTL time.Duration `yaml:"interpretation_ttl"`
	CategorizationTTL time.Duration `yaml:"categorization_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

// RateLimitConfig holds throttling limits.
type RateLimitConfig struct {
	PerIP         int           `yaml:"per_ip"`
	PerSession    int           `yaml:"per_session"`
	PerExternal   int           `yaml:"per_external"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	RedisAddr     string        `yaml:"redis_addr"` // empty = in-memory windows
}

// LLMConfig configures the external understanding/classification model.
type LLMConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Provider   string        `yaml:"provider"` // "deepseek", "openai", "mock"
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port        string `yaml:"port"`
	CorsOrigins string `yaml:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Includes:   []string{"**/*.csv"},
			Excludes:   []string{"**/.git/**", "**/.chatbot/**", "**/testdata/**"},
			SkipHeader: true,
		},
		Search: SearchConfig{
			TopK:           100,
			MinScore:       10,
			MaxModelSegLen: 10,
		},
		Dialogue: DialogueConfig{
			PageSize:          5,
			MaxDirectResults:  5,
			SessionTimeout:    30 * time.Minute,
			HistoryCapacity:   10,
			MaxCategories:     6,
			HeuristicCoverage: 0.6,
			SemanticCoverage:  0.4,
		},
		Cache: CacheConfig{
			MaxEntries:        1000,
			SearchTTL:         30 * time.Minute,
			InterpretationTTL: 2 * time.Hour,
			CategorizationTTL: 2 * time.Hour,
			SweepInterval:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			PerIP:         30,
			PerSession:    20,
			PerExternal:   10,
			MaxConcurrent: 50,
			Window:        time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		LLM: LLMConfig{
			Enabled:    false, // Disabled by default (requires API key)
			Provider:   "deepseek",
			Model:      "deepseek-chat",
			APIKeyEnv:  "DEEPSEEK_API_KEY",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			Backoff:    2 * time.Second,
			MaxBackoff: 8 * time.Second,
		},
		Server: ServerConfig{
			Port:        "8080",
			CorsOrigins: "*",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for chatbot.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "chatbot.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".chatbot", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides selected fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHATBOT_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("CHATBOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHATBOT_REDIS_ADDR"); v != "" {
		c.RateLimit.RedisAddr = v
	}
	if v := os.Getenv("CHATBOT_LLM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.LLM.Enabled = b
		}
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CatalogDBPath returns the path to the catalog snapshot database.
func CatalogDBPath(dir string) string {
	return filepath.Join(dir, ".chatbot", "catalog.db")
}

// EnsureDataDir ensures the .chatbot directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".chatbot"), 0755)
}
