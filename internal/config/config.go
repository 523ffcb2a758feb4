// Package config loads server settings from an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	// RunRetention is how long run history is kept.
	RunRetention time.Duration `yaml:"run_retention"`

	Planner    PlannerConfig    `yaml:"planner"`
	Search     SearchConfig     `yaml:"search"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Moderation ModerationConfig `yaml:"moderation"`
	Limits     LimitsConfig     `yaml:"limits"`
}

type PlannerConfig struct {
	Provider     string        `yaml:"provider"` // gemini | scripted
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	GeminiModel  string        `yaml:"gemini_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Provider string        `yaml:"provider"` // brave | duckduckgo
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Domains  []string      `yaml:"domains"`
}

type FetchConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxBytes      int           `yaml:"max_bytes"`
	RespectRobots bool          `yaml:"respect_robots"`
}

type ModerationConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type LimitsConfig struct {
	MaxTurns         int           `yaml:"max_turns"`
	MaxSearchResults int           `yaml:"max_search_results"`
	MaxFetchCalls    int           `yaml:"max_fetch_calls"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:         "8080",
		LogLevel:     "info",
		RunRetention: 30 * 24 * time.Hour,
		Planner: PlannerConfig{
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			Provider: "brave",
			Timeout:  15 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:  15 * time.Second,
			MaxBytes: 2 << 20,
		},
		Limits: LimitsConfig{
			MaxTurns:         6,
			MaxSearchResults: 3,
			MaxFetchCalls:    3,
			RunTimeout:       90 * time.Second,
		},
	}
}

// Load reads FINDER_CONFIG (when set), then .env, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cfg := Default()
	if path := os.Getenv("FINDER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RunRetention = getEnvDuration("RUN_RETENTION", c.RunRetention)

	c.Planner.Provider = getEnv("PLANNER_PROVIDER", c.Planner.Provider)
	c.Planner.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Planner.GeminiAPIKey)
	c.Planner.GeminiModel = getEnv("GEMINI_MODEL", c.Planner.GeminiModel)
	c.Planner.Timeout = getEnvDuration("PLANNER_TIMEOUT", c.Planner.Timeout)

	c.Search.Provider = getEnv("SEARCH_PROVIDER", c.Search.Provider)
	c.Search.APIKey = getEnv("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.Endpoint = getEnv("SEARCH_ENDPOINT", c.Search.Endpoint)
	c.Search.Timeout = getEnvDuration("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Fetch.UserAgent = getEnv("USER_AGENT", c.Fetch.UserAgent)
	c.Fetch.Timeout = getEnvDuration("FETCH_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.MaxBytes = getEnvInt("FETCH_MAX_BYTES", c.Fetch.MaxBytes)
	c.Fetch.RespectRobots = getEnvBool("RESPECT_ROBOTS", c.Fetch.RespectRobots)

	c.Moderation.APIKey = getEnv("MODERATION_API_KEY", c.Moderation.APIKey)
	c.Moderation.Endpoint = getEnv("MODERATION_ENDPOINT", c.Moderation.Endpoint)

	c.Limits.MaxTurns = getEnvInt("MAX_TURNS", c.Limits.MaxTurns)
	c.Limits.MaxSearchResults = getEnvInt("MAX_SEARCH_RESULTS", c.Limits.MaxSearchResults)
	c.Limits.MaxFetchCalls = getEnvInt("MAX_FETCH_CALLS", c.Limits.MaxFetchCalls)
	c.Limits.RunTimeout = getEnvDuration("RUN_TIMEOUT", c.Limits.RunTimeout)
}

// Validate rejects settings that would loosen the per-run caps or cannot
// be served.
func (c Config) Validate() error {
	switch strings.ToLower(c.Planner.Provider) {
	case "", "gemini", "scripted":
	default:
		return fmt.Errorf("unknown planner provider %q", c.Planner.Provider)
	}
	switch strings.ToLower(c.Search.Provider) {
	case "", "brave", "duckduckgo":
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}
	if c.Limits.MaxTurns < 1 || c.Limits.MaxTurns > 6 {
		return fmt.Errorf("max turns must be between 1 and 6, got %d", c.Limits.MaxTurns)
	}
	if c.Limits.MaxSearchResults < 1 || c.Limits.MaxSearchResults > 3 {
		return fmt.Errorf("max search results must be between 1 and 3, got %d", c.Limits.MaxSearchResults)
	}
	if c.Limits.MaxFetchCalls < 1 || c.Limits.MaxFetchCalls > 3 {
		return fmt.Errorf("max fetch calls must be between 1 and 3, got %d", c.Limits.MaxFetchCalls)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values are info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("20s") or bare seconds ("20").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
