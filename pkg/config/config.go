package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Influx    InfluxConfig
	Telemetry TelemetryConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	API       APIConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// NATSConfig holds the notification fan-out connection
type NATSConfig struct {
	URL           string
	Subject       string
	Enabled       bool
	MaxReconnects int
	ReconnectWait time.Duration
}

// InfluxConfig holds the InfluxDB meter-data source
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
}

// EngineConfig holds rules engine runtime settings
type EngineConfig struct {
	Workers          int
	Timeout          time.Duration
	RulesFile        string // optional YAML, built-in defaults when empty
	MeterTypeCode    string
	TimeSeriesSource string // postgres, influx
	LockTTL          time.Duration
	ResultCacheTTL   time.Duration
}

// SchedulerConfig holds the compliance job schedule
type SchedulerConfig struct {
	Enabled     bool
	MonthlySpec string
}

// APIConfig holds HTTP trigger limits
type APIConfig struct {
	RateLimit float64 // requests per second
	RateBurst int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()
	return load()
}

// LoadFile reads an explicit env file before the environment.
// Variables already set in the process win over the file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return load()
}

func load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			Subject:       getEnv("NATS_SUBJECT", "ldwatch.notification.created"),
			Enabled:       getEnvAsBool("NATS_ENABLED", false),
			MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", "2s"),
		},

		Influx: InfluxConfig{
			URL:         getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Token:       getEnv("INFLUXDB_TOKEN", ""),
			Org:         getEnv("INFLUXDB_ORG", ""),
			Bucket:      getEnv("INFLUXDB_BUCKET", "meter_readings"),
			Measurement: getEnv("INFLUXDB_MEASUREMENT", "meter_reading"),
		},

		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     getEnvAsBool("OTEL_INSECURE", true),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "ldwatch"),
		},

		Engine: EngineConfig{
			Workers:          getEnvAsInt("ENGINE_WORKERS", 4),
			Timeout:          getEnvAsDuration("ENGINE_TIMEOUT", "5m"),
			RulesFile:        getEnv("ENGINE_RULES_FILE", ""),
			MeterTypeCode:    getEnv("ENGINE_METER_TYPE", "PRODUCTION"),
			TimeSeriesSource: getEnv("TIMESERIES_SOURCE", "postgres"),
			LockTTL:          getEnvAsDuration("ENGINE_LOCK_TTL", "15m"),
			ResultCacheTTL:   getEnvAsDuration("ENGINE_RESULT_CACHE_TTL", "24h"),
		},

		Scheduler: SchedulerConfig{
			Enabled:     getEnvAsBool("SCHEDULER_ENABLED", true),
			MonthlySpec: getEnv("SCHEDULER_MONTHLY_SPEC", "0 0 6 1 * *"),
		},

		API: APIConfig{
			RateLimit: getEnvAsFloat("API_RATE_LIMIT", 2),
			RateBurst: getEnvAsInt("API_RATE_BURST", 5),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.TimeSeriesSource != "postgres" && c.Engine.TimeSeriesSource != "influx" {
		return fmt.Errorf("TIMESERIES_SOURCE must be one of: postgres, influx")
	}

	if c.Engine.TimeSeriesSource == "influx" && c.Influx.Org == "" {
		return fmt.Errorf("INFLUXDB_ORG is required when TIMESERIES_SOURCE=influx")
	}

	if c.Engine.Workers < 1 {
		return fmt.Errorf("ENGINE_WORKERS must be at least 1")
	}

	return nil
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
