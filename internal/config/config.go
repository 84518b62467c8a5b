package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openphi/deidentify/internal/document"
)

// ErrConfiguration marks configuration that must fail fast rather than
// silently default.
var ErrConfiguration = errors.New("config: invalid configuration")

// Classifier provider names accepted by CLASSIFIER_PROVIDER.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Pipeline defaults; requests may override mode and threshold.
	ConfidenceThreshold int
	Mode                string
	OCREnabled          bool
	OCRLanguage         string
	CategoriesFile      string
	MaxUploadMB         int

	ClassifierProvider      string
	ClassifierRetryAttempts int
	ClassifierRetryDelay    time.Duration
	BedrockModelID          string
	OpenAIBaseURL           string
	OpenAIAPIKey            string
	OpenAIModel             string
	GeminiAPIKey            string
	GeminiModel             string

	StorageBackend   string
	LocalStoragePath string
	S3Bucket         string
	S3Prefix         string

	UseMemoryQueue bool
	WorkerCount    int
	JobsQueueURL   string
	JobsTable      string

	DatabaseURL string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret       string
	RateLimitPerMinute   int
	DashboardHistorySize int
	CORSAllowedOrigins   []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ConfidenceThreshold: getEnvAsInt("CONFIDENCE_THRESHOLD", 70),
		Mode:                strings.ToLower(strings.TrimSpace(getEnv("DEIDENTIFICATION_MODE", "placeholder"))),
		OCREnabled:          getEnvAsBool("OCR_ENABLED", true),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "eng"),
		CategoriesFile:      getEnv("PHI_CATEGORIES_FILE", ""),
		MaxUploadMB:         getEnvAsInt("MAX_UPLOAD_MB", 25),

		ClassifierProvider:      strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER_PROVIDER", ProviderBedrock))),
		ClassifierRetryAttempts: getEnvAsInt("CLASSIFIER_RETRY_MAX_ATTEMPTS", 3),
		ClassifierRetryDelay:    getEnvAsDuration("CLASSIFIER_RETRY_BASE_DELAY", 2*time.Second),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		OpenAIBaseURL:           getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		StorageBackend:   strings.ToLower(strings.TrimSpace(getEnv("STORAGE_BACKEND", StorageLocal))),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data/uploads"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", "deidentify"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		JobsQueueURL:   getEnv("JOBS_QUEUE_URL", ""),
		JobsTable:      getEnv("JOBS_TABLE", "deidentify_jobs"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		RateLimitPerMinute:   getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		DashboardHistorySize: getEnvAsInt("DASHBOARD_HISTORY_SIZE", 10),
		CORSAllowedOrigins:   getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate rejects configuration that must not silently default. Unknown
// modes and providers fail here, before any document reaches the pipeline.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("%w: confidence threshold %d out of range [0,100]", ErrConfiguration, c.ConfidenceThreshold)
	}
	if _, err := document.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	switch c.ClassifierProvider {
	case ProviderBedrock:
		if c.BedrockModelID == "" {
			return fmt.Errorf("%w: BEDROCK_MODEL_ID is required for the bedrock provider", ErrConfiguration)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrConfiguration)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown classifier provider %q", ErrConfiguration, c.ClassifierProvider)
	}

	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: S3_BUCKET is required for the s3 backend", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrConfiguration, c.StorageBackend)
	}

	if !c.UseMemoryQueue && c.JobsQueueURL == "" {
		return fmt.Errorf("%w: JOBS_QUEUE_URL is required when the memory queue is disabled", ErrConfiguration)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be at least 1", ErrConfiguration)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("%w: max upload size must be at least 1 MB", ErrConfiguration)
	}
	return nil
}

// MaxUploadBytes converts the configured upload cap to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable as a slice
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
