package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the trobot API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chat       ChatConfig       `yaml:"chat"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheTTL   int    `yaml:"cache_ttl_sec"` // 0 = no caching
}

// GenerationConfig holds text generation provider settings.
type GenerationConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	MaxRetries      int     `yaml:"max_retries"`
	CooldownSec     int     `yaml:"cooldown_sec"`     // circuit breaker open duration
	RetryAfterCap   int     `yaml:"retry_after_cap"`  // max honored Retry-After hint, seconds
	FallbackMessage string  `yaml:"fallback_message"` // returned while the breaker is open
	TimeoutSec      int     `yaml:"timeout_sec"`
}

// ChatConfig holds conversation behavior settings.
type ChatConfig struct {
	HistoryLimit     int     `yaml:"history_limit"`
	AnswerCacheTTL   int     `yaml:"answer_cache_ttl_sec"`
	PriceExactDelta  float64 `yaml:"price_exact_delta_mil"`
	PriceApproxPct   float64 `yaml:"price_approx_pct"`
	PriceApproxMin   float64 `yaml:"price_approx_min_mil"`
	ContactPhoneMask bool    `yaml:"contact_phone_mask"` // mask owner phones for anonymous users
}

// RetrievalConfig holds search ranking settings.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	HybridBonus     float64 `yaml:"hybrid_bonus"`  // applied when lexical and dense both hit
	ArticleBoost    float64 `yaml:"article_boost"` // FAQ intent on articles
	ListingBoost    float64 `yaml:"listing_boost"` // listing intent on listings
	PackageBoost    float64 `yaml:"package_boost"` // pricing intent on packages
	FreshWeekBoost  float64 `yaml:"fresh_week_boost"`
	FreshMonthBoost float64 `yaml:"fresh_month_boost"`
	ProvinceBoost   float64 `yaml:"province_boost"`
	MetaBoost       float64 `yaml:"meta_boost"` // price/area metadata match
}

// CorpusConfig holds index build settings.
type CorpusConfig struct {
	IndexPath  string `yaml:"index_path"`
	ArticleDir string `yaml:"article_dir"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "trobot:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "llama-3.1-8b-instant"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1024
	}
	if c.Generation.MaxRetries <= 0 {
		c.Generation.MaxRetries = 3
	}
	if c.Generation.CooldownSec <= 0 {
		c.Generation.CooldownSec = 300
	}
	if c.Generation.RetryAfterCap <= 0 {
		c.Generation.RetryAfterCap = 1800
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Generation.FallbackMessage == "" {
		c.Generation.FallbackMessage = "Hệ thống đang quá tải, bạn vui lòng thử lại sau ít phút nhé!"
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 5
	}
	if c.Chat.AnswerCacheTTL <= 0 {
		c.Chat.AnswerCacheTTL = 300
	}
	if c.Chat.PriceExactDelta <= 0 {
		c.Chat.PriceExactDelta = 0.25
	}
	if c.Chat.PriceApproxPct <= 0 {
		c.Chat.PriceApproxPct = 0.10
	}
	if c.Chat.PriceApproxMin <= 0 {
		c.Chat.PriceApproxMin = 0.5
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.HybridBonus <= 0 {
		c.Retrieval.HybridBonus = 1.35
	}
	if c.Retrieval.ArticleBoost <= 0 {
		c.Retrieval.ArticleBoost = 4.0
	}
	if c.Retrieval.ListingBoost <= 0 {
		c.Retrieval.ListingBoost = 1.3
	}
	if c.Retrieval.PackageBoost <= 0 {
		c.Retrieval.PackageBoost = 3.0
	}
	if c.Retrieval.FreshWeekBoost <= 0 {
		c.Retrieval.FreshWeekBoost = 1.5
	}
	if c.Retrieval.FreshMonthBoost <= 0 {
		c.Retrieval.FreshMonthBoost = 1.2
	}
	if c.Retrieval.ProvinceBoost <= 0 {
		c.Retrieval.ProvinceBoost = 1.4
	}
	if c.Retrieval.MetaBoost <= 0 {
		c.Retrieval.MetaBoost = 1.15
	}
	if c.Corpus.IndexPath == "" {
		c.Corpus.IndexPath = "data/tfidf_index.json"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if c.Retrieval.HybridBonus < 1 {
		return fmt.Errorf("retrieval.hybrid_bonus must be >= 1, got %v", c.Retrieval.HybridBonus)
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
