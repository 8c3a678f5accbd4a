package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Presence backends.
const (
	PresenceRedis  = "redis"
	PresenceMemory = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Presence PresenceConfig
	WS       WSConfig
	Dev      bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string //nolint:gosec // G117: DB connection config
	DBName      string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings. Disabling Redis turns off the
// cross-instance relay and requires the in-memory presence backend.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// PresenceConfig holds board presence settings.
type PresenceConfig struct {
	Backend string
	TTL     time.Duration
}

// WSConfig holds realtime connection settings.
type WSConfig struct {
	WriteTimeout    time.Duration
	SendQueueSize   int
	MaxMessageBytes int64
	EchoMutations   bool
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("BOARDSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("BOARDSYNC_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	autoMigrate, err := getEnvBool("BOARDSYNC_DB_AUTO_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisEnabled, err := getEnvBool("BOARDSYNC_REDIS_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("BOARDSYNC_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("BOARDSYNC_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	presenceTTL, err := getEnvDuration("BOARDSYNC_PRESENCE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	wsWriteTimeout, err := getEnvDuration("BOARDSYNC_WS_WRITE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sendQueue, err := getEnvInt("BOARDSYNC_WS_SEND_QUEUE", 64)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxMessage, err := getEnvInt("BOARDSYNC_WS_MAX_MESSAGE_BYTES", 64*1024)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	echo, err := getEnvBool("BOARDSYNC_WS_ECHO_MUTATIONS", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dev, err := getEnvBool("BOARDSYNC_DEV", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:        getEnv("BOARDSYNC_DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("BOARDSYNC_DB_USER", "boardsync"),
			Password:    getEnv("BOARDSYNC_DB_PASSWORD", ""),
			DBName:      getEnv("BOARDSYNC_DB_NAME", "boardsync_dev"),
			SSLMode:     getEnv("BOARDSYNC_DB_SSLMODE", "disable"),
			MaxConns:    dbMaxConns,
			AutoMigrate: autoMigrate,
		},
		Redis: RedisConfig{
			Enabled:  redisEnabled,
			Addr:     getEnv("BOARDSYNC_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("BOARDSYNC_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("BOARDSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Presence: PresenceConfig{
			Backend: getEnv("BOARDSYNC_PRESENCE_BACKEND", PresenceRedis),
			TTL:     presenceTTL,
		},
		WS: WSConfig{
			WriteTimeout:    wsWriteTimeout,
			SendQueueSize:   sendQueue,
			MaxMessageBytes: int64(maxMessage),
			EchoMutations:   echo,
		},
		Dev: dev,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("BOARDSYNC_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("BOARDSYNC_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.SSLMode == "disable" && !c.Dev {
		log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("BOARDSYNC_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("BOARDSYNC_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	switch c.Presence.Backend {
	case PresenceRedis:
		if !c.Redis.Enabled {
			return errors.New("BOARDSYNC_PRESENCE_BACKEND=redis requires BOARDSYNC_REDIS_ENABLED=true")
		}
	case PresenceMemory:
		if c.Redis.Enabled {
			log.Warn().Msg("in-memory presence is per instance; users on other instances will not be listed")
		}
	default:
		return fmt.Errorf("BOARDSYNC_PRESENCE_BACKEND must be %q or %q, got %q", PresenceRedis, PresenceMemory, c.Presence.Backend)
	}
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("BOARDSYNC_PRESENCE_TTL must be positive, got %s", c.Presence.TTL)
	}

	if c.WS.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_WS_WRITE_TIMEOUT must be positive, got %s", c.WS.WriteTimeout)
	}
	if c.WS.SendQueueSize < 1 {
		return fmt.Errorf("BOARDSYNC_WS_SEND_QUEUE must be >= 1, got %d", c.WS.SendQueueSize)
	}
	if c.WS.MaxMessageBytes < 1024 {
		return fmt.Errorf("BOARDSYNC_WS_MAX_MESSAGE_BYTES must be >= 1024, got %d", c.WS.MaxMessageBytes)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as required by the migrator.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
