package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// RatesDBDriver is one of postgres, pgx or sqlite.
	RatesDBDriver string
	RatesDBDSN    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	APIBaseURL  string
	APIUsername string
	APIPassword string
	APITimeout  time.Duration
	APIMaxRPS   float64

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	APICostPerDay float64
	MaxAPISpend   float64

	Aggregation      string
	OutputDir        string
	BackfillAPIRates bool
	Debug            bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		RatesDBDriver: strings.ToLower(getEnv("RATES_DB_DRIVER", "postgres")),
		RatesDBDSN:    getEnv("RATES_DB_DSN", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rca"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "stortrack"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		APIBaseURL:  getEnv("STORTRACK_API_URL", "https://api.stortrack.com/api/"),
		APIUsername: getEnv("STORTRACK_USERNAME", ""),
		APIPassword: getEnv("STORTRACK_PASSWORD", ""),
		APITimeout:  time.Duration(getEnvInt("API_TIMEOUT_SEC", 60)) * time.Second,
		APIMaxRPS:   getEnvFloat("API_MAX_RPS", 2),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 1),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 500),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		APICostPerDay: getEnvFloat("API_COST_PER_DAY", 12.50),
		MaxAPISpend:   getEnvFloat("MAX_API_SPEND", 0),

		Aggregation:      strings.ToLower(getEnv("AGGREGATION", "mean")),
		OutputDir:        getEnv("OUTPUT_DIR", "./output"),
		BackfillAPIRates: getEnvBool("BACKFILL_API_RATES", false),
		Debug:            getEnvBool("LOG_DEBUG", false),
	}
}

// DSN returns the connection string for the rate warehouse. An explicit
// RATES_DB_DSN wins; otherwise one is assembled from the POSTGRES_* parts.
func (c *Config) DSN() string {
	if c.RatesDBDSN != "" {
		return c.RatesDBDSN
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
