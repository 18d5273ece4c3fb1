package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	CORSAllowOrigin     []string
	DatabaseURL         string
	OpenRouterAPIKey    string
	LLMModel            string
	LLMFallbackModels   []string
	LLMMaxCandidates    int
	LLMTemperature      float32
	LLMTimeoutSeconds   int
	LLMRateLimitRetries int
	WebhookURL          string
	PipelineConcurrency int
	SQSQueueURL         string
}

// defaultFallbackModels is used when LLM_FALLBACK_MODELS is unset. These are
// free-tier OpenRouter models; deployments are expected to override them.
var defaultFallbackModels = []string{
	"google/gemini-2.0-flash-lite-preview-02-05:free",
	"openrouter/free",
	"stepfun/step-3.5-flash:free",
	"upstage/solar-pro-3:free",
	"arcee-ai/trinity-large-preview:free",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	fallback := splitAndTrim(getEnv("LLM_FALLBACK_MODELS", ""))
	if len(fallback) == 0 {
		fallback = defaultFallbackModels
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 env,
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:         dbURL,
		OpenRouterAPIKey:    getEnv("OPENROUTER_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", ""),
		LLMFallbackModels:   fallback,
		LLMMaxCandidates:    getEnvInt("LLM_MAX_CANDIDATES", 5),
		LLMTemperature:      getEnvFloat32("LLM_TEMPERATURE", 0.3),
		LLMTimeoutSeconds:   getEnvInt("LLM_TIMEOUT_SECONDS", 60),
		LLMRateLimitRetries: getEnvInt("LLM_RATE_LIMIT_RETRIES", 3),
		WebhookURL:          getEnv("WEBHOOK_URL", ""),
		PipelineConcurrency: getEnvInt("PIPELINE_CONCURRENCY", 4),
		SQSQueueURL:         getEnv("SA_SQS_QUEUE_URL", ""),
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
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvFloat32(key string, def float32) float32 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		log.Printf("config %s invalid float: %v", key, err)
		return def
	}
	return float32(val)
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
