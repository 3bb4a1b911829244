package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	LogLevel  string
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // mysql | postgres | sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration. Tokens are issued by the auth service,
// this service only validates them.
type JWTConfig struct {
	Secret string
}

// RedisConfig holds the round lock backend. Empty Addr means in-process locks.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	CycleWatchCron    string
	CycleOverdueDays  int
	CycleWatchEnabled bool
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	database, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:   appMode,
		Port:      getEnv("PORT", "3000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Database:  database,
		JWT:       loadJWTConfig(appMode),
		Redis:     loadRedisConfig(),
		Scheduler: loadSchedulerConfig(),
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "spsc-cashround"),
			OTLPEndpoint: getEnv("OTEL_ENDPOINT", ""),
		},
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := modePrefix(mode)

	driver := strings.ToLower(strings.TrimSpace(getEnv(prefix+"DB_DRIVER", "mysql")))
	switch driver {
	case "mysql", "postgres", "sqlite":
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid %sDB_DRIVER: '%s' (must be mysql, postgres or sqlite)", prefix, driver)
	}

	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "spsc_cashround"),
	}, nil
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	return JWTConfig{
		Secret: getEnv(modePrefix(mode)+"JWT_SECRET", "default_secret"),
	}
}

func loadRedisConfig() RedisConfig {
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := strconv.Atoi(getEnv("ROUND_LOCK_TTL_SECONDS", "15"))
	if ttl < 1 {
		ttl = 15
	}

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		LockTTL:  time.Duration(ttl) * time.Second,
	}
}

func loadSchedulerConfig() SchedulerConfig {
	overdue, _ := strconv.Atoi(getEnv("CYCLE_OVERDUE_DAYS", "7"))
	if overdue < 1 {
		overdue = 7
	}
	enabled, err := strconv.ParseBool(getEnv("CYCLE_WATCH_ENABLED", "true"))
	if err != nil {
		enabled = true
	}

	return SchedulerConfig{
		CycleWatchCron:    getEnv("CYCLE_WATCH_CRON", "30 8 * * *"),
		CycleOverdueDays:  overdue,
		CycleWatchEnabled: enabled,
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://cashround.spsc.or.th"
	}
	return origins
}
