package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppEnv   string `validate:"oneof=development production test"`
	LogLevel string `validate:"oneof=debug info warn error"`
	Server   ServerConfig
	Backend  BackendConfig
	Tracker  TrackerConfig
	Redis    RedisConfig
	Relay    RelayConfig
	Styles   StylesConfig
}

// ServerConfig holds server-related configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port            int `validate:"min=1,max=65535"`
	ReadTimeout     int `validate:"min=1"`
	WriteTimeout    int `validate:"min=1"`
	ShutdownTimeout int `validate:"min=1"`
}

// BackendConfig selects and configures the generation backend
type BackendConfig struct {
	Kind             string `validate:"oneof=replicate relay mock"`
	ReplicateToken   string `validate:"required_if=Kind replicate"`
	ReplicateURL     string `validate:"omitempty,url"`
	ReplicateVersion string
	RelayURL         string `validate:"required_if=Kind relay,omitempty,url"`
	RequestTimeout   int    `validate:"min=1"` // seconds
	MockLatencyMS    int    `validate:"min=0"`
	MockOutputURL    string `validate:"omitempty,url"`
}

// TrackerConfig holds job tracking limits
type TrackerConfig struct {
	Mode           string `validate:"oneof=poll wait"`
	MaxAttempts    int    `validate:"min=1"`
	PollIntervalMS int    `validate:"min=1"`
	WaitTimeout    int    `validate:"min=0"` // seconds, 0 derives it from the poll budget
	CancelTimeout  int    `validate:"min=1"` // seconds
}

// RedisConfig holds Redis-related configuration. An empty Addr keeps jobs in memory.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int `validate:"min=0"`
	KeyPrefix string
	JobTTL    int `validate:"min=1"` // seconds
}

// RelayConfig holds HTTP relay settings
type RelayConfig struct {
	APIPrefix      string `validate:"omitempty,startswith=/"`
	AllowedOrigins []string
	RateLimit      int   `validate:"min=0"` // requests per window, 0 disables limiting
	RateWindow     int   `validate:"min=1"` // seconds
	MaxBodyBytes   int64 `validate:"min=1"`
}

// StylesConfig holds style catalog settings
type StylesConfig struct {
	Path            string
	JanitorSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	token := getEnv("REPLICATE_API_TOKEN", "")
	defaultKind := "mock"
	if token != "" {
		defaultKind = "replicate"
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 3001)),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 150), // sync generation blocks up to the wait budget
			ShutdownTimeout: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 10),
		},
		Backend: BackendConfig{
			Kind:             getEnv("BACKEND", defaultKind),
			ReplicateToken:   token,
			ReplicateURL:     getEnv("REPLICATE_API_URL", ""),
			ReplicateVersion: getEnv("REPLICATE_MODEL_VERSION", ""),
			RelayURL:         getEnv("RELAY_URL", ""),
			RequestTimeout:   getEnvAsInt("BACKEND_REQUEST_TIMEOUT", 30),
			MockLatencyMS:    getEnvAsInt("MOCK_LATENCY_MS", 3000),
			MockOutputURL:    getEnv("MOCK_OUTPUT_URL", ""),
		},
		Tracker: TrackerConfig{
			Mode:           getEnv("TRACKER_MODE", "poll"),
			MaxAttempts:    getEnvAsInt("TRACKER_MAX_ATTEMPTS", 60),
			PollIntervalMS: getEnvAsInt("TRACKER_POLL_INTERVAL_MS", 2000),
			WaitTimeout:    getEnvAsInt("TRACKER_WAIT_TIMEOUT", 0),
			CancelTimeout:  getEnvAsInt("TRACKER_CANCEL_TIMEOUT", 10),
		},
		Redis: RedisConfig{
			Addr:      getRedisAddr(),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "arqia"),
			JobTTL:    getEnvAsInt("REDIS_JOB_TTL", 3600),
		},
		Relay: RelayConfig{
			APIPrefix:      getEnv("RELAY_API_PREFIX", "/api"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:      getEnvAsInt("RATE_LIMIT_MAX", 20),
			RateWindow:     getEnvAsInt("RATE_LIMIT_WINDOW", 900),
			MaxBodyBytes:   int64(getEnvAsInt("MAX_BODY_BYTES", 50<<20)),
		},
		Styles: StylesConfig{
			Path:            getEnv("STYLES_PATH", ""),
			JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 1m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// PollInterval returns the tracker poll interval as a duration
func (c TrackerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// JobTTLDuration returns the registry TTL as a duration
func (c RedisConfig) JobTTLDuration() time.Duration {
	return time.Duration(c.JobTTL) * time.Second
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated environment variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getRedisAddr prefers REDIS_URL, then REDIS_ADDR. Empty means no Redis.
func getRedisAddr() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return strings.TrimPrefix(url, "redis://")
	}
	return os.Getenv("REDIS_ADDR")
}
