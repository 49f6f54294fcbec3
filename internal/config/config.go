package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultDeliveryEmailPattern = `^[\w.-]+@gmail\.com$`

type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	JWTExpiry      time.Duration
	ServerPort     string
	Environment    string
	CORSOrigins    []string
	SiteBaseURL    string

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	RateLimitBlockTime   time.Duration

	// Uploads
	UploadDir      string
	UploadBaseURL  string
	UploadMaxBytes int64
	StorageTimeout time.Duration

	// Purchases
	DeliveryEmailPattern string
	JournalPath          string

	// Views
	ViewRetention     time.Duration
	ViewSweepInterval time.Duration

	// SEO drafting
	SEOProvider      string
	SEORatePerMinute int
	SEOTimeout       time.Duration
	OpenAIAPIKey     string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	cfg := &Config{
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      getEnvAsDuration("JWT_EXPIRY", "24h"),
		ServerPort:     getEnv("SERVER_PORT", ":8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		CORSOrigins:    getEnvAsList("CORS_ORIGINS", "http://localhost:3000"),
		SiteBaseURL:    strings.TrimRight(getEnv("SITE_BASE_URL", "http://localhost:3000"), "/"),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
		RateLimitBlockTime:   getEnvAsDuration("RATE_LIMIT_BLOCK_TIME", "5m"),

		UploadDir:      getEnv("UPLOAD_DIR", "data/uploads"),
		UploadBaseURL:  strings.TrimRight(getEnv("UPLOAD_BASE_URL", "/uploads"), "/"),
		UploadMaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 50*1024*1024)),
		StorageTimeout: getEnvAsDuration("STORAGE_TIMEOUT", "30s"),

		DeliveryEmailPattern: getEnv("DELIVERY_EMAIL_PATTERN", DefaultDeliveryEmailPattern),
		JournalPath:          getEnv("JOURNAL_PATH", "data/journal.log"),

		ViewRetention:     getEnvAsDuration("VIEW_RETENTION", "720h"),
		ViewSweepInterval: getEnvAsDuration("VIEW_SWEEP_INTERVAL", "1h"),

		SEOProvider:      strings.ToLower(getEnv("SEO_PROVIDER", "none")),
		SEORatePerMinute: getEnvAsInt("SEO_RATE_PER_MINUTE", 10),
		SEOTimeout:       getEnvAsDuration("SEO_TIMEOUT", "15s"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or contradictory settings.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		errs = append(errs, errors.New("DATABASE_DRIVER must be postgres or sqlite"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.SEOProvider {
	case "none":
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when SEO_PROVIDER=openai"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when SEO_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, errors.New("SEO_PROVIDER must be none, openai or gemini"))
	}
	return errors.Join(errs...)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

func getEnvAsList(key, defaultVal string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultVal), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
