package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database"`

	// Redis Configuration (push channel + ephemeral typing state)
	Redis RedisConfig `json:"redis"`

	// Messaging Configuration
	Messaging MessagingConfig `json:"messaging"`

	// Presence Configuration
	Presence PresenceConfig `json:"presence"`

	// Sync Configuration
	Sync SyncConfig `json:"sync"`

	// Auth Configuration
	Auth AuthConfig `json:"auth"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	Environment  string `json:"environment"` // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// RedisConfig contains redis connection configuration
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// MessagingConfig contains message pipeline configuration
type MessagingConfig struct {
	// PreviewLength is the maximum length of the conversation's
	// last-message preview before it is ellipsis-truncated.
	PreviewLength int `json:"preview_length"`

	// TypingDebounce is how long after the last keystroke the typing
	// flag is cleared.
	TypingDebounce time.Duration `json:"typing_debounce"`
}

// PresenceConfig contains presence heartbeat configuration
type PresenceConfig struct {
	// HeartbeatInterval is the fixed period between activity writes.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// StalenessThreshold is how old a last-activity timestamp may be
	// before other clients treat the user as offline.
	StalenessThreshold time.Duration `json:"staleness_threshold"`
}

// SyncConfig contains sync coordinator configuration
type SyncConfig struct {
	// PollInterval is the fixed refresh period for the polling fallback.
	PollInterval time.Duration `json:"poll_interval"`

	// SelfEchoWindow is how long after a local send an inbound event is
	// treated as an echo of that send and not surfaced.
	SelfEchoWindow time.Duration `json:"self_echo_window"`
}

// AuthConfig contains token verification configuration
type AuthConfig struct {
	JWTSecret string `json:"-"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// Load builds the configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         GetEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         GetEnvOrDefault("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:  GetEnvOrDefault("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:         GetEnvOrDefault("DB_HOST", "localhost"),
			Port:         GetEnvOrDefault("DB_PORT", "3306"),
			Username:     GetEnvOrDefault("DB_USER", "carematch_user"),
			Password:     GetEnvOrDefault("DB_PASSWORD", ""),
			DatabaseName: GetEnvOrDefault("DB_NAME", "carematch_db"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     GetEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: GetEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Messaging: MessagingConfig{
			PreviewLength:  getEnvInt("MESSAGE_PREVIEW_LENGTH", 100),
			TypingDebounce: getEnvDuration("TYPING_DEBOUNCE", 3*time.Second),
		},
		Presence: PresenceConfig{
			HeartbeatInterval:  getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 120*time.Second),
			StalenessThreshold: getEnvDuration("PRESENCE_STALENESS_THRESHOLD", 5*time.Minute),
		},
		Sync: SyncConfig{
			PollInterval:   getEnvDuration("SYNC_POLL_INTERVAL", 5*time.Second),
			SelfEchoWindow: getEnvDuration("SYNC_SELF_ECHO_WINDOW", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: GetEnvOrDefault("JWT_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  GetEnvOrDefault("LOG_LEVEL", "info"),
			Format: GetEnvOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// DSN builds the MySQL connection string.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func GetEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
