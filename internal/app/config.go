package app

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	HTTPAddr           string
	DBDriver           string
	DBDSN              string
	DefaultTestMinutes int
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifeMins  int
	MaxUploadMB        int
	CORSOrigins        []string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	AIQuestionCount     int
	AIRateLimitPerMin   int
	AIRateLimitDisabled bool

	BlobBasePath string
}

// LoadConfig reads a local .env file when present, then the process
// environment. Variables already set in the environment win.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	return configFromEnv()
}

func configFromEnv() Config {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	dsn := os.Getenv("DB_DSN")
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		dsn = url
		if driver == "" && (strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")) {
			driver = "postgres"
		}
	}
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" && driver == "sqlite" {
		dsn = "quizdesk.db"
	}

	return Config{
		AppEnv:              envOrDefault("APP_ENV", "development"),
		HTTPAddr:            envOrDefault("HTTP_ADDR", ":8080"),
		DBDriver:            driver,
		DBDSN:               dsn,
		DefaultTestMinutes:  intOrDefault("DEFAULT_TEST_MINUTES", 60),
		DBMaxOpenConns:      intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:      intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins:   intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		MaxUploadMB:         intOrDefault("MAX_UPLOAD_MB", 16),
		CORSOrigins:         listOrDefault("CORS_ORIGINS", []string{"*"}),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:         os.Getenv("GEMINI_MODEL"),
		GeminiBaseURL:       os.Getenv("GEMINI_BASE_URL"),
		AIQuestionCount:     intOrDefault("AI_QUESTION_COUNT", 10),
		AIRateLimitPerMin:   intOrDefault("AI_RATE_LIMIT_PER_MINUTE", 10),
		AIRateLimitDisabled: boolOrDefault("AI_RATE_LIMIT_DISABLED", false),
		BlobBasePath:        envOrDefault("BLOB_BASE_PATH", "./data"),
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func listOrDefault(key string, fallback []string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
