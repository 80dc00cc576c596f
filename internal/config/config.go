package config

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	TablePrefix string
	CatalogPath string

	// Generator configuration
	GeneratorProvider string // "anthropic" or "lorem" (offline dev/test)
	GeneratorModel    string
	AnthropicAPIKey   string
	MediaSearchURL    string

	// Concurrency gate
	GenerationConcurrency int
	GateMaxQueue          int
	QueueBusyThreshold    int

	// Generation attempts and timeouts
	GenRetryAttempts int
	GenSoftTimeout   time.Duration
	GenHardTimeout   time.Duration

	// Pool policy
	FreshnessMaxAge      time.Duration
	PerPassGenerationCap int

	// Duplicate detection
	DuplicateSimilarityThreshold float64
	DuplicateScanWindow          int

	// Maintenance sweep
	MaintInterval        time.Duration
	MaintBudget          time.Duration
	MaintTaskCap         int
	MaintMinInterval     time.Duration
	StreakAbortThreshold int

	// Logging
	LogDir      string // empty disables the timestamped log file
	LogMaxFiles int

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	maintInterval := 30 * time.Minute
	if env == "dev" {
		maintInterval = 5 * time.Minute
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),
		CatalogPath: getEnv("CATALOG_PATH", ""),

		GeneratorProvider: getEnv("GENERATOR_PROVIDER", defaultProvider(env)),
		GeneratorModel:    getEnv("GENERATOR_MODEL", "claude-haiku-4-5-20251001"),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		MediaSearchURL:    getEnv("MEDIA_SEARCH_URL", "https://api.openverse.org/v1"),

		GenerationConcurrency: getInt("GENERATION_CONCURRENCY", 2),
		GateMaxQueue:          getInt("GATE_MAX_QUEUE", 32),
		QueueBusyThreshold:    getInt("QUEUE_BUSY_THRESHOLD", 2),

		GenRetryAttempts: getInt("GEN_RETRY_ATTEMPTS", 3),
		GenSoftTimeout:   getDuration("GEN_SOFT_TIMEOUT", 20*time.Second),
		GenHardTimeout:   getDuration("GEN_HARD_TIMEOUT", 60*time.Second),

		FreshnessMaxAge:      time.Duration(getInt("FRESHNESS_MAX_AGE_DAYS", 14)) * 24 * time.Hour,
		PerPassGenerationCap: getInt("PER_PASS_GENERATION_CAP", 3),

		DuplicateSimilarityThreshold: getFloat("DUPLICATE_SIMILARITY_THRESHOLD", 0.6),
		DuplicateScanWindow:          getInt("DUPLICATE_SCAN_WINDOW", 50),

		MaintInterval:        getDuration("MAINT_INTERVAL", maintInterval),
		MaintBudget:          getDuration("MAINT_BUDGET", 20*time.Second),
		MaintTaskCap:         getInt("MAINT_TASK_CAP", 6),
		MaintMinInterval:     getDuration("MAINT_MIN_INTERVAL", 24*time.Hour),
		StreakAbortThreshold: getInt("STREAK_ABORT_THRESHOLD", 2),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 5),

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate rejects configurations the pool subsystem cannot run with.
// Called once at startup; a failure here is fatal by design, everything at
// runtime degrades instead.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GeneratorProvider, validation.Required, validation.In("anthropic", "lorem")),
		validation.Field(&c.GeneratorModel, validation.Required),
		validation.Field(&c.GenerationConcurrency, validation.Required, validation.Min(1), validation.Max(16)),
		validation.Field(&c.GateMaxQueue, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueBusyThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.GenRetryAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.PerPassGenerationCap, validation.Required, validation.Min(1)),
		validation.Field(&c.MaintTaskCap, validation.Required, validation.Min(1)),
		validation.Field(&c.StreakAbortThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.DuplicateSimilarityThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DuplicateScanWindow, validation.Required, validation.Min(1)),
		validation.Field(&c.LogMaxFiles, validation.Required, validation.Min(1)),
	)
}

// defaultProvider picks the offline lorem provider outside prod so dev and
// test never need an API key.
func defaultProvider(env string) string {
	if env == "prod" {
		return "anthropic"
	}
	return "lorem"
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
