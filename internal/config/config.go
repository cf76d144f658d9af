// Package config loads the service configuration from config/{ENV}.yaml.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/simcheck/internal/domain"
)

// Config holds the simcheck API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. An empty list disables auth;
// an empty entry is a config error, so an unset key variable never opens the API.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port               int      `yaml:"port"`
	ReadTimeoutSec     int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int      `yaml:"write_timeout_sec"`
	RequestTimeoutSec  int      `yaml:"request_timeout_sec"` // handler deadline, below write_timeout_sec
	ShutdownSec        int      `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// AnalysisConfig holds similarity analysis limits.
type AnalysisConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"` // percent, nil = default
	MaxBatchSize        int      `yaml:"max_batch_size"`
	MaxTextBytes        int      `yaml:"max_text_bytes"`
}

// Threshold returns the configured clone threshold.
func (a AnalysisConfig) Threshold() float64 {
	if a.SimilarityThreshold == nil {
		return DefaultSimilarityThreshold
	}
	return *a.SimilarityThreshold
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string                    `yaml:"provider"` // ollama, openai, local
	Model       string                    `yaml:"model"`
	Dimensions  int                       `yaml:"dimensions"` // 0 = accept any uniform size
	Instruction string                    `yaml:"instruction"`
	Concurrency int                       `yaml:"concurrency"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

// Active returns the settings of the selected provider.
func (e EmbeddingConfig) Active() ProviderConfig {
	return e.Providers[e.Provider]
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey         string       `yaml:"api_key"`
	BaseURL        string       `yaml:"base_url"`
	RateLimitRPS   float64      `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst int          `yaml:"rate_limit_burst"`
	Budget         BudgetConfig `yaml:"budget"`
}

// DatabaseConfig holds the optional Redis/Valkey connection used for budget counters.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	IOTimeoutSec     int      `yaml:"io_timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return len(d.Addrs) > 0 }

// Defaults applied by ApplyDefaults.
const (
	DefaultSimilarityThreshold = 90.0
	DefaultMaxBatchSize        = 100
	DefaultMaxTextBytes        = 32 * 1024
	DefaultMaxBodyBytes        = 4 << 20
	DefaultConcurrency         = 4
	DefaultCORSOrigin          = "http://localhost:3000"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = max(c.HTTP.WriteTimeoutSec-1, 1)
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.HTTP.CORSAllowedOrigins == nil {
		c.HTTP.CORSAllowedOrigins = []string{DefaultCORSOrigin}
	}
	if c.Analysis.SimilarityThreshold == nil {
		th := DefaultSimilarityThreshold
		c.Analysis.SimilarityThreshold = &th
	}
	if c.Analysis.MaxBatchSize <= 0 {
		c.Analysis.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.Analysis.MaxTextBytes <= 0 {
		c.Analysis.MaxTextBytes = DefaultMaxTextBytes
	}

	defaults := domain.DefaultVectorConfig()
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = defaults.Provider
	}
	if c.Embedding.Model == "" && c.Embedding.Provider == domain.ProviderOllama {
		c.Embedding.Model = defaults.Model
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = DefaultConcurrency
	}
	if c.Embedding.Provider == domain.ProviderOllama {
		p := c.Embedding.Providers[domain.ProviderOllama]
		if p.BaseURL == "" {
			p.BaseURL = defaults.BaseURL
			if c.Embedding.Providers == nil {
				c.Embedding.Providers = map[string]ProviderConfig{}
			}
			c.Embedding.Providers[domain.ProviderOllama] = p
		}
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.WriteTimeoutSec > 1 && c.HTTP.RequestTimeoutSec >= c.HTTP.WriteTimeoutSec {
		return fmt.Errorf("http.request_timeout_sec must be below http.write_timeout_sec (%d), got %d",
			c.HTTP.WriteTimeoutSec, c.HTTP.RequestTimeoutSec)
	}
	for i, key := range c.Auth.APIKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty; remove the entry to disable auth", i)
		}
	}
	if th := c.Analysis.Threshold(); math.IsNaN(th) || th < 0 || th > 100 {
		return fmt.Errorf("analysis.similarity_threshold must be between 0 and 100, got %v", th)
	}
	if c.Analysis.MaxBatchSize <= 0 {
		return fmt.Errorf("analysis.max_batch_size must be positive, got %d", c.Analysis.MaxBatchSize)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}

	switch c.Embedding.Provider {
	case domain.ProviderOllama, domain.ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", c.Embedding.Provider)
		}
	case domain.ProviderLocal:
		if c.Embedding.Dimensions == 0 {
			return fmt.Errorf("embedding.dimensions is required for provider %q", domain.ProviderLocal)
		}
	default:
		return fmt.Errorf("embedding.provider must be one of %q, %q, %q, got %q",
			domain.ProviderOllama, domain.ProviderOpenAI, domain.ProviderLocal, c.Embedding.Provider)
	}

	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
		if name == domain.ProviderLocal && (p.Budget.DailyTokenLimit > 0 || p.Budget.MonthlyTokenLimit > 0) {
			return fmt.Errorf("embedding.providers.%s.budget: the local provider consumes no tokens", name)
		}
		if p.RateLimitRPS < 0 {
			return fmt.Errorf("embedding.providers.%s.rate_limit_rps must not be negative", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
