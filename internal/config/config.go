package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverCouchDB  = "couchdb"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver string

	// CouchDB
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	// SQL drivers. Path is used by sqlite when DSN is empty.
	DSN  string
	Path string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int64
	WriteWait         time.Duration
	PongWait          time.Duration
	PingPeriod        time.Duration
	MaxConnPerUser    int
	SendQueueSize     int
	MessagesPerSecond float64
	MessageBurst      int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := getEnvAsDuration("JWT_EXPIRATION", "15m")
	if err != nil {
		return nil, err
	}

	refreshExp, err := getEnvAsDuration("REFRESH_TOKEN_EXPIRATION", "168h")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvAsDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	writeWait, err := getEnvAsDuration("WS_WRITE_WAIT", "10s")
	if err != nil {
		return nil, err
	}

	pongWait, err := getEnvAsDuration("WS_PONG_WAIT", "60s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Env:             getEnv("ENV", "development"),
			ShutdownTimeout: shutdownTimeout,
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "notesync"),
			DSN:      getEnv("DB_DSN", ""),
			Path:     getEnv("DB_PATH", "data/notesync.db"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize:   getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:    int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 1<<20)),
			WriteWait:         writeWait,
			PongWait:          pongWait,
			PingPeriod:        (pongWait * 9) / 10,
			MaxConnPerUser:    getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
			SendQueueSize:     getEnvAsInt("WS_SEND_QUEUE_SIZE", 256),
			MessagesPerSecond: getEnvAsFloat("WS_MESSAGES_PER_SECOND", 20),
			MessageBurst:      getEnvAsInt("WS_MESSAGE_BURST", 40),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverCouchDB, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Database.Driver == DriverPostgres && c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required for the postgres driver")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}

	if c.WebSocket.PongWait <= 0 {
		return fmt.Errorf("WS_PONG_WAIT must be positive")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
