package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultPollTimeoutSeconds        = 20
	defaultRetryIncrementSeconds     = 3
	defaultMaxRetryDelaySeconds      = 20
	defaultReplySubscriptionCapacity = 10000
	defaultNextStepCapacity          = 1000
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Poll     PollConfig     `json:"poll"`
	Caches   CachesConfig   `json:"caches"`
	Status   StatusConfig   `json:"status"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// TelegramConfig holds transport credentials and connectivity.
type TelegramConfig struct {
	Token string `json:"token" env:"BOTLOOP_TELEGRAM_TOKEN"`
	Proxy string `json:"proxy" env:"BOTLOOP_TELEGRAM_PROXY"`
}

// PollConfig tunes the update poll loop.
type PollConfig struct {
	TimeoutSeconds        int  `json:"timeout_seconds" env:"BOTLOOP_POLL_TIMEOUT"`
	RetryIncrementSeconds int  `json:"retry_increment_seconds"`
	MaxRetryDelaySeconds  int  `json:"max_retry_delay_seconds"`
	SkipBacklog           bool `json:"skip_backlog" env:"BOTLOOP_SKIP_BACKLOG"`
}

// Timeout returns the server-side long-poll wait.
func (p PollConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryIncrement returns the per-failure backoff increment.
func (p PollConfig) RetryIncrement() time.Duration {
	return time.Duration(p.RetryIncrementSeconds) * time.Second
}

// MaxRetryDelay returns the backoff ceiling.
func (p PollConfig) MaxRetryDelay() time.Duration {
	return time.Duration(p.MaxRetryDelaySeconds) * time.Second
}

// CachesConfig bounds the conversational state caches.
type CachesConfig struct {
	ReplySubscriptions int `json:"reply_subscriptions"`
	NextStepHandlers   int `json:"next_step_handlers"`
}

// StatusConfig configures the health endpoint bind address. A zero port
// disables the server.
type StatusConfig struct {
	Host string `json:"host" env:"BOTLOOP_STATUS_HOST"`
	Port int    `json:"port" env:"BOTLOOP_STATUS_PORT"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" env:"BOTLOOP_LOG_FORMAT"`
	Level     string `json:"level,omitempty" env:"BOTLOOP_LOG_LEVEL"`
	AddSource bool   `json:"add_source,omitempty" env:"BOTLOOP_LOG_ADD_SOURCE"`
}

// LoadConfig resolves config.json, unmarshals it, applies environment
// overrides, and fills defaults.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads configuration from an explicit path.
func LoadConfigFrom(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Poll.TimeoutSeconds <= 0 {
		c.Poll.TimeoutSeconds = defaultPollTimeoutSeconds
	}
	if c.Poll.RetryIncrementSeconds <= 0 {
		c.Poll.RetryIncrementSeconds = defaultRetryIncrementSeconds
	}
	if c.Poll.MaxRetryDelaySeconds <= 0 {
		c.Poll.MaxRetryDelaySeconds = defaultMaxRetryDelaySeconds
	}
	if c.Caches.ReplySubscriptions <= 0 {
		c.Caches.ReplySubscriptions = defaultReplySubscriptionCapacity
	}
	if c.Caches.NextStepHandlers <= 0 {
		c.Caches.NextStepHandlers = defaultNextStepCapacity
	}
}

// findConfigPath resolves the active config file location.
//
// Precedence is BOTLOOP_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("BOTLOOP_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("BOTLOOP_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
