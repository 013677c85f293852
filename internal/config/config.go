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

// Config holds the treedex daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Elastic ElasticConfig `yaml:"elastic"`
	Redis   RedisConfig   `yaml:"redis"`
	Index   IndexConfig   `yaml:"index"`
	Types   TypesConfig   `yaml:"types"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds admin HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticConfig holds search store connection settings.
type ElasticConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RedisConfig holds node mirror and mutation stream settings.
type RedisConfig struct {
	Addrs            []string     `yaml:"addrs"`
	Username         string       `yaml:"username"`
	Password         string       `yaml:"password"`
	DB               int          `yaml:"db"`
	KeyPrefix        string       `yaml:"key_prefix"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Stream           StreamConfig `yaml:"stream"`
}

// StreamConfig holds mutation stream consumption settings.
type StreamConfig struct {
	Key         string `yaml:"key"`
	BatchSize   int    `yaml:"batch_size"`
	BlockMillis int    `yaml:"block_millis"`
}

// IndexConfig holds index naming and indexing policy settings.
type IndexConfig struct {
	// Name is the public alias; physical indices are <name>-<postfix>.
	Name              string `yaml:"name"`
	LiveWorkspaceOnly bool   `yaml:"live_workspace_only"`
	BatchSize         int    `yaml:"batch_size"`
}

// TypesConfig maps node type names to their indexing behavior.
type TypesConfig struct {
	// Default applies to node types with no explicit entry.
	Default NodeTypeConfig            `yaml:"default"`
	Rules   map[string]NodeTypeConfig `yaml:"rules"`
}

// NodeTypeConfig describes how one node type is indexed.
type NodeTypeConfig struct {
	Fulltext     *bool    `yaml:"fulltext"`      // contribute to fulltext (default true)
	FulltextRoot bool     `yaml:"fulltext_root"` // own an aggregate document
	TextProps    []string `yaml:"text_properties"`
	SkipProps    []string `yaml:"skip_properties"`
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
	if c.Elastic.TimeoutSec <= 0 {
		c.Elastic.TimeoutSec = 30
	}
	if c.Elastic.ReadinessTimeout <= 0 {
		c.Elastic.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "treedex"
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.Stream.Key == "" {
		c.Redis.Stream.Key = c.Redis.KeyPrefix + ":mutations"
	}
	if c.Redis.Stream.BatchSize <= 0 {
		c.Redis.Stream.BatchSize = 100
	}
	if c.Redis.Stream.BlockMillis <= 0 {
		c.Redis.Stream.BlockMillis = 5000
	}
	if c.Index.Name == "" {
		c.Index.Name = "treedex"
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elastic.Addrs) == 0 {
		return fmt.Errorf("elastic.addrs is required")
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if strings.Contains(c.Index.Name, ",") {
		return fmt.Errorf("index.name must be a single alias, got %q", c.Index.Name)
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
