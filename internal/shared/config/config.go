package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	PublicBaseURL   string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider     string
	LLMModel        string
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiUseADC    bool
	GeminiTimeout   time.Duration
	AnalysisTimeout time.Duration

	SessionTTL  time.Duration
	MaxSessions uint64

	DatabaseURL    string
	NotifyQueueURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience; existing env wins.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL not set in production; run ledger will be kept in memory")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LLMProvider:     normalizeProvider(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:        getEnv("LLM_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", ""),
		GeminiUseADC:    getEnvBool("GEMINI_USE_ADC", false),
		GeminiTimeout:   getEnvSeconds("GEMINI_TIMEOUT_SECONDS", 120*time.Second),
		AnalysisTimeout: getEnvSeconds("ANALYSIS_TIMEOUT_SECONDS", 0),

		SessionTTL:  getEnvMinutes("SESSION_TTL_MINUTES", 60*time.Minute),
		MaxSessions: uint64(getEnvInt("MAX_SESSIONS", 1000)),

		DatabaseURL:    dbURL,
		NotifyQueueURL: getEnv("NOTIFY_SQS_QUEUE_URL", ""),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: skip env file %s: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func getEnvMinutes(key string, def time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Minute
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "placeholder", "none":
		return "placeholder"
	default:
		return "gemini"
	}
}
