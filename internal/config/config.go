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

// Config holds the dealhound API configuration.
type Config struct {
	HTTP     HTTPConfig              `yaml:"http"`
	Database DatabaseConfig          `yaml:"database"`
	AI       AIConfig                `yaml:"ai"`
	Sources  map[string]SourceConfig `yaml:"sources"`
	Search   SearchConfig            `yaml:"search"`
	Cache    CacheConfig             `yaml:"cache"`
	Auth     AuthConfig              `yaml:"auth"`
	Logging  LoggingConfig           `yaml:"logging"`
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

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// AIConfig holds the AI query-parser collaborator settings.
type AIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SourceConfig holds a single marketplace source's adapter and limiter settings.
type SourceConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BaseURL      string  `yaml:"base_url"`
	APIKey       string  `yaml:"api_key"`
	Currency     string  `yaml:"currency"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	RatePerSec   float64 `yaml:"rate_per_sec"`
	Burst        int     `yaml:"burst"`
	BreakerTrips int     `yaml:"breaker_trips"` // consecutive failures before the circuit opens

	// JSON extraction paths into the search response (gjson syntax).
	Paths SourcePaths `yaml:"paths"`
}

// SourcePaths maps response fields for the generic JSON adapter.
type SourcePaths struct {
	Items       string `yaml:"items"`
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	OldPrice    string `yaml:"old_price"`
	Category    string `yaml:"category"`
	Rating      string `yaml:"rating"`
	Reviews     string `yaml:"reviews"`
}

// SearchConfig holds fan-out and ranking settings.
type SearchConfig struct {
	DeadlineSec      int     `yaml:"deadline_sec"`
	MaxWorkers       int     `yaml:"max_workers"`
	MinPersisted     int     `yaml:"min_persisted"`     // persisted matches below this trigger a live fan-out
	ResultFloor      int     `yaml:"result_floor"`      // minimum ranked results before fallback expansion
	FloorFraction    float64 `yaml:"floor_fraction"`    // floor is max(result_floor, fraction*candidates)
	BreakerCooldownS int     `yaml:"breaker_cooldown_sec"`
	BreakerMaxCoolS  int     `yaml:"breaker_max_cooldown_sec"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	TTLSec int `yaml:"ttl_sec"`
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
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.AI.TimeoutSec <= 0 {
		c.AI.TimeoutSec = 3
	}
	if c.Search.DeadlineSec <= 0 {
		c.Search.DeadlineSec = 15
	}
	if c.Search.MaxWorkers <= 0 {
		c.Search.MaxWorkers = 8
	}
	if c.Search.MinPersisted <= 0 {
		c.Search.MinPersisted = 10
	}
	if c.Search.ResultFloor <= 0 {
		c.Search.ResultFloor = 10
	}
	if c.Search.FloorFraction <= 0 {
		c.Search.FloorFraction = 0.2
	}
	if c.Search.BreakerCooldownS <= 0 {
		c.Search.BreakerCooldownS = 30
	}
	if c.Search.BreakerMaxCoolS <= 0 {
		c.Search.BreakerMaxCoolS = 600
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	for name, src := range c.Sources {
		if src.TimeoutSec <= 0 {
			src.TimeoutSec = 10
		}
		if src.RatePerSec <= 0 {
			src.RatePerSec = 1
		}
		if src.Burst <= 0 {
			src.Burst = 5
		}
		if src.BreakerTrips <= 0 {
			src.BreakerTrips = 3
		}
		if src.Currency == "" {
			src.Currency = "USD"
		}
		c.Sources[name] = src
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
	if c.Search.FloorFraction > 1 {
		return fmt.Errorf("search.floor_fraction must be at most 1, got %g", c.Search.FloorFraction)
	}
	enabled := 0
	for name, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required for an enabled source", name)
		}
		if src.Paths.Items == "" || src.Paths.URL == "" || src.Paths.Title == "" || src.Paths.Price == "" {
			return fmt.Errorf("sources.%s.paths must set items, url, title and price", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one enabled source is required")
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
