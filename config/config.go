package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	CacheDir           string
	CacheTTLHours      int
	CacheMaxStaleHours int

	MaxListingsPerDistrict int
	DistrictDelayMs        int
	ScrapeIntervalHours    int
	NavTimeoutSec          int
	MaxRetries             int

	HTTPAddr  string
	ChromeBin string

	ArchiveEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		CacheDir:           getEnv("CACHE_DIR", "./market-data-cache"),
		CacheTTLHours:      getEnvInt("CACHE_TTL_HOURS", 6),
		CacheMaxStaleHours: getEnvInt("CACHE_MAX_STALE_HOURS", 0),

		MaxListingsPerDistrict: getEnvInt("MAX_LISTINGS_PER_DISTRICT", 15),
		DistrictDelayMs:        getEnvInt("DISTRICT_DELAY_MS", 3000),
		ScrapeIntervalHours:    getEnvInt("SCRAPE_INTERVAL_HOURS", 6),
		NavTimeoutSec:          getEnvInt("NAV_TIMEOUT_SEC", 45),
		MaxRetries:             getEnvInt("MAX_RETRIES", 2),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8090"),
		ChromeBin: getEnv("CHROME_BIN", ""),

		ArchiveEnabled:   getEnvBool("ARCHIVE_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// DSN returns the PostgreSQL connection string for the archive sink.
func (c *Config) DSN() string {
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

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
