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

// AppConfig holds everything the server reads from the environment.
type AppConfig struct {
	Addr       string
	LogFile    string
	LogLevel   string
	LogStdout  bool
	JWTSecret  string
	TimeZone   *time.Location
	CORSOrigin []string

	DB DBConfig

	// Optional integrations; empty disables them.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RouteCacheTTL time.Duration
	NATSURL       string
	NATSPrefix    string
}

type DBConfig struct {
	Driver   string // "pgx" (default) or "postgres" for lib/pq
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}

// Load reads .env (if present) and the process environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	cfg := &AppConfig{
		Addr:      getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		LogFile:   getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "pgx"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "transport"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		NATSURL:       os.Getenv("NATS_URL"),
		NATSPrefix:    getEnv("NATS_SUBJECT_PREFIX", "bus"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	if d := cfg.DB.Driver; d != "pgx" && d != "postgres" {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want pgx or postgres", d)
	}

	var err error
	if cfg.LogStdout, err = strconv.ParseBool(getEnv("LOG_STDOUT", "true")); err != nil {
		return nil, fmt.Errorf("invalid LOG_STDOUT: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.RouteCacheTTL, err = time.ParseDuration(getEnv("ROUTE_CACHE_TTL", "10m")); err != nil {
		return nil, fmt.Errorf("invalid ROUTE_CACHE_TTL: %w", err)
	}
	// Calendar days for the history "date" filter are taken in this zone.
	if cfg.TimeZone, err = time.LoadLocation(getEnv("APP_TIMEZONE", "Asia/Kolkata")); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigin = append(cfg.CORSOrigin, o)
		}
	}
	return cfg, nil
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}
