package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Session       SessionConfig       `yaml:"session"`
	License       LicenseConfig       `yaml:"license"`
	Bot           BotConfig           `yaml:"bot"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
}

// RedisConfig holds Redis configuration for the session store
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName   string        `yaml:"cookie_name"`
	TTL          time.Duration `yaml:"ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// LicenseConfig holds license validation configuration
type LicenseConfig struct {
	Enabled       bool          `yaml:"enabled"`
	File          string        `yaml:"file"`
	ServerURL     string        `yaml:"server_url"`
	CronSchedule  string        `yaml:"cron_schedule"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheSize     int           `yaml:"cache_size"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
}

// BotConfig holds Telegram bot worker configuration
type BotConfig struct {
	Token       string        `yaml:"token"`
	APIBaseURL  string        `yaml:"api_base_url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel           string `yaml:"log_level"`
	MetricsEnabled     bool   `yaml:"metrics_enabled"`
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig builds configuration in three layers: built-in defaults, an
// optional yaml file (BUZONSHARE_CONFIG_FILE or the path argument), then
// environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv("BUZONSHARE_CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:    25,
			MinConns:    5,
			Timeout:     10 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Session: SessionConfig{
			CookieName: "buzonshare_session",
			TTL:        24 * time.Hour,
		},
		License: LicenseConfig{
			File:          "license.key",
			CronSchedule:  "@every 6h",
			CacheTTL:      15 * time.Minute,
			CacheSize:     128,
			ClientTimeout: 10 * time.Second,
		},
		Bot: BotConfig{
			APIBaseURL:  "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "buzonshare",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func (c *Config) applyEnv() {
	// Server
	c.Server.Host = getEnv("BUZONSHARE_HOST", c.Server.Host)
	c.Server.Port = getEnv("BUZONSHARE_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("BUZONSHARE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("BUZONSHARE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("BUZONSHARE_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("BUZONSHARE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	// Database
	c.Database.URL = getEnv("BUZONSHARE_POSTGRES_URL", c.Database.URL)
	c.Database.MaxConns = getEnvInt("BUZONSHARE_POSTGRES_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvInt("BUZONSHARE_POSTGRES_MIN_CONNS", c.Database.MinConns)
	c.Database.Timeout = getEnvDuration("BUZONSHARE_POSTGRES_TIMEOUT", c.Database.Timeout)

	// Redis
	c.Redis.URL = getEnv("BUZONSHARE_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("BUZONSHARE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("BUZONSHARE_REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("BUZONSHARE_REDIS_POOL_SIZE", c.Redis.PoolSize)

	// Session
	c.Session.CookieName = getEnv("BUZONSHARE_SESSION_COOKIE", c.Session.CookieName)
	c.Session.TTL = getEnvDuration("BUZONSHARE_SESSION_TTL", c.Session.TTL)
	c.Session.SecureCookie = getEnvBool("BUZONSHARE_SESSION_SECURE", c.Session.SecureCookie)

	// License
	c.License.Enabled = getEnvBool("BUZONSHARE_LICENSE_ENABLED", c.License.Enabled)
	c.License.File = getEnv("BUZONSHARE_LICENSE_FILE", c.License.File)
	c.License.ServerURL = getEnv("BUZONSHARE_LICENSE_SERVER_URL", c.License.ServerURL)
	c.License.CronSchedule = getEnv("BUZONSHARE_LICENSE_CRON", c.License.CronSchedule)
	c.License.CacheTTL = getEnvDuration("BUZONSHARE_LICENSE_CACHE_TTL", c.License.CacheTTL)
	c.License.CacheSize = getEnvInt("BUZONSHARE_LICENSE_CACHE_SIZE", c.License.CacheSize)

	// Bot
	c.Bot.Token = getEnv("BUZONSHARE_BOT_TOKEN", c.Bot.Token)
	c.Bot.APIBaseURL = getEnv("BUZONSHARE_BOT_API_URL", c.Bot.APIBaseURL)
	c.Bot.PollTimeout = getEnvDuration("BUZONSHARE_BOT_POLL_TIMEOUT", c.Bot.PollTimeout)

	// Observability
	c.Observability.LogLevel = getEnv("BUZONSHARE_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("BUZONSHARE_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("BUZONSHARE_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("BUZONSHARE_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("BUZONSHARE_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("BUZONSHARE_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("BUZONSHARE_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.License.Enabled {
		if c.License.ServerURL == "" {
			return fmt.Errorf("license server URL is required when license checking is enabled")
		}
		if c.License.File == "" {
			return fmt.Errorf("license file is required when license checking is enabled")
		}
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
