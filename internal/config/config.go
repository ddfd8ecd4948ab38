package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string
	JourneyTable        string
	ReportBucket        string

	// Analyzer configuration
	AnalyzerMode        string
	AnalyzerTimeout     time.Duration
	LLMProvider         string
	LLMFallbackProvider string
	OpenAIAPIKey        string
	OpenAIModel         string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string
	RulesFile           string
	BusinessConfigFile  string
	ResponseSeed        int64

	// Messenger channel
	MessengerPageToken   string
	MessengerAppSecret   string
	MessengerVerifyToken string
	MessengerSendRPS     float64

	AdminJWTSecret     string
	AdminRateLimitRPS  float64
	AdminRateBurst     int
	CORSAllowedOrigins []string

	// Seller notifications
	SellerNotifyEmail string
	SendGridAPIKey    string
	SESFromEmail      string
	SESConfigSet      string
	NotifyFromName    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 4),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),
		JourneyTable:        getEnv("JOURNEY_TABLE", ""),
		ReportBucket:        getEnv("REPORT_BUCKET", ""),

		AnalyzerMode:        strings.ToLower(strings.TrimSpace(getEnv("ANALYZER_MODE", "rules"))),
		AnalyzerTimeout:     getEnvAsDuration("ANALYZER_TIMEOUT", 8*time.Second),
		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		RulesFile:           getEnv("RULES_FILE", ""),
		BusinessConfigFile:  getEnv("BUSINESS_CONFIG_FILE", ""),
		ResponseSeed:        int64(getEnvAsInt("RESPONSE_SEED", 0)),

		MessengerPageToken:   getEnv("MESSENGER_PAGE_TOKEN", ""),
		MessengerAppSecret:   getEnv("MESSENGER_APP_SECRET", ""),
		MessengerVerifyToken: getEnv("MESSENGER_VERIFY_TOKEN", ""),
		MessengerSendRPS:     getEnvAsFloat("MESSENGER_SEND_RPS", 10),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminRateLimitRPS:  getEnvAsFloat("ADMIN_RATE_LIMIT_RPS", 5),
		AdminRateBurst:     getEnvAsInt("ADMIN_RATE_BURST", 10),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		SellerNotifyEmail: getEnv("SELLER_NOTIFY_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),
		NotifyFromName:    getEnv("NOTIFY_FROM_NAME", "Shop Assistant"),
	}
}

// UseLLMAnalyzer reports whether inbound messages should be analyzed by an LLM.
func (c *Config) UseLLMAnalyzer() bool {
	return c != nil && c.AnalyzerMode == "llm"
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

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
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
