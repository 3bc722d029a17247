package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// History backend names accepted by HISTORY_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	ServerPort string
	History    HistoryConfig
	Gateway    GatewayConfig
	Logging    LoggingConfig
}

// HistoryConfig selects and configures the conversation history backend.
type HistoryConfig struct {
	Backend  string
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type RedisConfig struct {
	Addr        string
	DialTimeout time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// GatewayConfig configures the chat-completions endpoint the assistant
// replies are generated by.
type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func LoadConfig() (*Config, error) {
	port := envOrDefault("PORT", "8080")

	backend := strings.ToLower(envOrDefault("HISTORY_BACKEND", BackendMemory))
	switch backend {
	case BackendMemory, BackendMongo, BackendPostgres, BackendRedis:
	default:
		return nil, fmt.Errorf("config: unknown HISTORY_BACKEND %q", backend)
	}

	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)

	logging := LoggingConfig{
		Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
		Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
		EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
		ServiceName:  envOrDefault("SERVICE_NAME", "study-assistant"),
	}

	cfg := &Config{
		ServerPort: port,
		History: HistoryConfig{
			Backend: backend,
			Mongo: MongoConfig{
				URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
				Database:       envOrDefault("MONGO_DATABASE", "study_assistant"),
				ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			Postgres: PostgresConfig{
				DSN:               os.Getenv("POSTGRES_DSN"),
				Host:              envOrDefault("POSTGRES_HOST", "localhost"),
				Port:              pgPort,
				User:              envOrDefault("POSTGRES_USER", "postgres"),
				Password:          envOrDefault("POSTGRES_PASSWORD", "postgres"),
				Database:          envOrDefault("POSTGRES_DB", "study_assistant"),
				MaxConns:          maxConns,
				MinConns:          minConns,
				MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
				MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
				HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
				ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			Redis: RedisConfig{
				Addr:        envOrDefault("REDIS_ADDR", "localhost:6379"),
				DialTimeout: parseDuration(envOrDefault("REDIS_DIAL_TIMEOUT", "2s"), 2*time.Second),
			},
		},
		Gateway: GatewayConfig{
			BaseURL:     strings.TrimRight(envOrDefault("GATEWAY_BASE_URL", "https://api.openai.com/v1"), "/"),
			APIKey:      strings.TrimSpace(os.Getenv("GATEWAY_API_KEY")),
			Model:       envOrDefault("GATEWAY_MODEL", "gpt-4o-mini"),
			Temperature: parseFloat(envOrDefault("GATEWAY_TEMPERATURE", "0.7"), 0.7),
			MaxTokens:   int(parseInt32(envOrDefault("GATEWAY_MAX_TOKENS", "512"), 512)),
			Timeout:     parseDuration(envOrDefault("GATEWAY_TIMEOUT", "20s"), 20*time.Second),
		},
		Logging: logging,
	}

	return cfg, nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
