package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds the taskpilot service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Models    ModelsConfig    `yaml:"models"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // 0 after defaults keeps SSE streams open
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig selects and configures the chunk store.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis (default), sqlite
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	SQLitePath       string   `yaml:"sqlite_path"`
	IndexName        string   `yaml:"index_name"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ModelsConfig holds the OpenAI-compatible provider and model names.
// An empty APIKey switches every capability to its deterministic stub.
type ModelsConfig struct {
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Provider            string  `yaml:"provider"`
	ClassifierModel     string  `yaml:"classifier_model"`
	ExplainModel        string  `yaml:"explain_model"`
	GenerateModel       string  `yaml:"generate_model"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
	QueryInstruction    string  `yaml:"query_instruction"`
	RequestsPerSecond   float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst               int     `yaml:"burst"`
}

// Enabled reports whether a real provider is configured.
func (m ModelsConfig) Enabled() bool { return m.APIKey != "" }

// RetrievalConfig tunes the retrieval agent and embedding cache.
type RetrievalConfig struct {
	CandidateLimit  int     `yaml:"candidate_limit"`
	ResultLimit     int     `yaml:"result_limit"`
	LexicalWeight   float64 `yaml:"lexical_weight"`
	SemanticWeight  float64 `yaml:"semantic_weight"`
	SnippetLength   int     `yaml:"snippet_length"`
	CacheSize       int     `yaml:"embedding_cache_size"`
	CacheTTLSec     int     `yaml:"embedding_cache_ttl_sec"` // 0 = no expiry
	DisableSemantic bool    `yaml:"disable_semantic"`
}

// ChatConfig holds request handling and delivery settings.
type ChatConfig struct {
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	StreamTimeoutSec  int `yaml:"stream_timeout_sec"` // 0 = streams never time out
	SubscriberBuffer  int `yaml:"subscriber_buffer"`
	HeartbeatSec      int `yaml:"heartbeat_sec"`
}

// RequestTimeout returns the per-question deadline.
func (c ChatConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// StreamTimeout returns the maximum lifetime of a push subscription.
func (c ChatConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSec) * time.Second
}

// Heartbeat returns the interval between SSE keep-alive comments.
func (c ChatConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
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
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "taskpilot.db"
	}
	if c.Database.IndexName == "" {
		c.Database.IndexName = "taskpilot:chunks"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	c.Models.applyDefaults()
	c.Retrieval.applyDefaults()

	if c.Chat.RequestTimeoutSec <= 0 {
		c.Chat.RequestTimeoutSec = 60
	}
	if c.Chat.SubscriberBuffer <= 0 {
		c.Chat.SubscriberBuffer = 16
	}
	if c.Chat.HeartbeatSec <= 0 {
		c.Chat.HeartbeatSec = 15
	}
}

func (m *ModelsConfig) applyDefaults() {
	if m.Provider == "" {
		m.Provider = "openai"
	}
	if m.ClassifierModel == "" {
		m.ClassifierModel = "gpt-4o-mini"
	}
	if m.ExplainModel == "" {
		m.ExplainModel = m.ClassifierModel
	}
	if m.GenerateModel == "" {
		m.GenerateModel = m.ClassifierModel
	}
	if m.EmbeddingModel == "" {
		m.EmbeddingModel = "text-embedding-3-small"
	}
	if m.EmbeddingDimensions <= 0 {
		m.EmbeddingDimensions = 1536
	}
	if m.Burst <= 0 {
		m.Burst = 1
	}
}

func (r *RetrievalConfig) applyDefaults() {
	if r.CandidateLimit <= 0 {
		r.CandidateLimit = 12
	}
	if r.ResultLimit <= 0 {
		r.ResultLimit = 5
	}
	if r.LexicalWeight == 0 && r.SemanticWeight == 0 {
		r.LexicalWeight, r.SemanticWeight = 0.6, 0.4
	}
	if r.SnippetLength <= 0 {
		r.SnippetLength = 220
	}
	if r.CacheSize == 0 {
		r.CacheSize = 1024
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required for the redis driver")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverSQLite, c.Database.Driver)
	}

	if c.Models.RequestsPerSecond < 0 {
		return fmt.Errorf("models.requests_per_second must not be negative, got %g", c.Models.RequestsPerSecond)
	}

	r := c.Retrieval
	if r.LexicalWeight < 0 || r.SemanticWeight < 0 {
		return errors.New("retrieval weights must not be negative")
	}
	if math.Abs(r.LexicalWeight+r.SemanticWeight-1) > 1e-9 {
		return fmt.Errorf("retrieval weights must sum to 1, got %g + %g", r.LexicalWeight, r.SemanticWeight)
	}
	if r.ResultLimit > r.CandidateLimit {
		return fmt.Errorf("retrieval.result_limit (%d) must not exceed candidate_limit (%d)",
			r.ResultLimit, r.CandidateLimit)
	}

	if c.Chat.StreamTimeoutSec < 0 {
		return fmt.Errorf("chat.stream_timeout_sec must not be negative, got %d", c.Chat.StreamTimeoutSec)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to this source file, for tests and `go run` from subdirectories
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
