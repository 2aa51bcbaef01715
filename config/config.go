package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ClaudeBin    string
	DefaultModel string

	AllowedOrigins []string
	BodyLimit      int64

	ShutdownGrace time.Duration
	ShutdownForce time.Duration
}

func Load() *Config {
	godotenv.Load()
	godotenv.Load("../.env")

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "screenlens.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "screenlens"),
		DBPassword: getEnv("DB_PASSWORD", "screenlens"),
		DBName:     getEnv("DB_NAME", "screenlens"),

		ClaudeBin:    getEnv("CLAUDE_BIN", "claude"),
		DefaultModel: getEnv("DEFAULT_MODEL", "claude-sonnet-4-20250514"),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		BodyLimit:      parseInt64(getEnv("BODY_LIMIT", ""), 15<<20),

		ShutdownGrace: parseDuration(getEnv("SHUTDOWN_GRACE", "3s"), 3*time.Second),
		ShutdownForce: parseDuration(getEnv("SHUTDOWN_FORCE", "8s"), 8*time.Second),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=disable TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseInt64(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
