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

// Config holds the indexer configuration.
type Config struct {
	HTTP             HTTPConfig     `yaml:"http"`
	Elasticsearch    ElasticConfig  `yaml:"elasticsearch"`
	Queue            QueueConfig    `yaml:"queue"`
	BundleRepository BundleConfig   `yaml:"bundle_repository"`
	Indexing         IndexingConfig `yaml:"indexing"`
	Auth             AuthConfig     `yaml:"auth"`
	Logging          LoggingConfig  `yaml:"logging"`
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

// ElasticConfig holds document store connection settings.
type ElasticConfig struct {
	Addresses        []string `yaml:"addresses"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	IndexPrefix      string   `yaml:"index_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// QueueConfig holds queue transport settings.
type QueueConfig struct {
	Addrs                []string `yaml:"addrs"`
	Password             string   `yaml:"password"`
	NotifyQueue          string   `yaml:"notify_queue"`
	TallyQueue           string   `yaml:"tally_queue"`
	VisibilityTimeoutSec int      `yaml:"visibility_timeout_sec"`
	DedupWindowSec       int      `yaml:"dedup_window_sec"`
}

// BundleConfig holds upstream bundle repository settings.
type BundleConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// IndexingConfig holds pipeline behavior settings.
type IndexingConfig struct {
	// Workers is the number of consumers per queue.
	Workers int `yaml:"workers"`
	// WriteConcurrency bounds parallel contribution writes per bundle.
	WriteConcurrency int `yaml:"write_concurrency"`
	// WriteRetries bounds aggregate version-conflict retries.
	WriteRetries int `yaml:"write_retries"`
	// KeepLatestBundleVersion aggregates only each bundle's highest version.
	KeepLatestBundleVersion bool `yaml:"keep_latest_bundle_version"`
	// TestMode fences notifications: every one must carry a test marker.
	TestMode bool `yaml:"test_mode"`
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elasticsearch.IndexPrefix == "" {
		c.Elasticsearch.IndexPrefix = "azul_"
	}
	if c.Elasticsearch.ReadinessTimeout <= 0 {
		c.Elasticsearch.ReadinessTimeout = 10
	}
	if c.Queue.NotifyQueue == "" {
		c.Queue.NotifyQueue = "azul-notify"
	}
	if c.Queue.TallyQueue == "" {
		c.Queue.TallyQueue = "azul-tally"
	}
	if c.Queue.VisibilityTimeoutSec <= 0 {
		c.Queue.VisibilityTimeoutSec = 300
	}
	if c.Queue.DedupWindowSec <= 0 {
		c.Queue.DedupWindowSec = 300
	}
	if c.BundleRepository.TimeoutSec <= 0 {
		c.BundleRepository.TimeoutSec = 60
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 2
	}
	if c.Indexing.WriteConcurrency <= 0 {
		c.Indexing.WriteConcurrency = 8
	}
	if c.Indexing.WriteRetries <= 0 {
		c.Indexing.WriteRetries = 3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required")
	}
	if len(c.Queue.Addrs) == 0 {
		return fmt.Errorf("queue.addrs is required")
	}
	if c.BundleRepository.BaseURL == "" {
		return fmt.Errorf("bundle_repository.base_url is required")
	}
	if c.Queue.NotifyQueue == c.Queue.TallyQueue {
		return fmt.Errorf("queue.notify_queue and queue.tally_queue must differ, both are %q", c.Queue.NotifyQueue)
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
