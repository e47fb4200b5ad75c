package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Market   MarketConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	ChatLogFilePath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "memory"
	Connection string
}

type APIKeys struct {
	HuggingFace  string // LLM router
	FinBERT      string // sentiment inference
	AlphaVantage string
}

type AIConfig struct {
	LLMProvider      string // "huggingface" or "ollama"
	LLMModel         string
	LLMBaseURL       string
	SentimentURL     string
	Streaming        bool
	ReplayDelay      time.Duration
	TitleTimeout     time.Duration
	SentimentTimeout time.Duration
}

type MarketConfig struct {
	Provider        string // "alphavantage" or "nse"
	AlphaVantageURL string
	NSEServiceURL   string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			ChatLogFilePath:    getEnv("CHAT_LOG_FILE_PATH", "logs/llm_chat.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3001"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			HuggingFace:  getEnv("HF_LLM_KEY", ""),
			FinBERT:      getEnv("HF_FINBERT_KEY", ""),
			AlphaVantage: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:      getEnv("LLM_PROVIDER", "huggingface"),
			LLMModel:         getEnv("LLM_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
			LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
			SentimentURL:     getEnv("SENTIMENT_URL", ""),
			Streaming:        getEnvAsBool("LLM_STREAMING", true),
			ReplayDelay:      getEnvAsDuration("STREAM_REPLAY_DELAY", 10*time.Millisecond),
			TitleTimeout:     getEnvAsDuration("TITLE_TIMEOUT", 15*time.Second),
			SentimentTimeout: getEnvAsDuration("SENTIMENT_TIMEOUT", 10*time.Second),
		},
		Market: MarketConfig{
			Provider:        getEnv("MARKET_PROVIDER", "alphavantage"),
			AlphaVantageURL: getEnv("ALPHA_VANTAGE_URL", ""),
			NSEServiceURL:   getEnv("NSE_SERVICE_URL", "http://localhost:8000"),
			Timeout:         getEnvAsDuration("MARKET_TIMEOUT", 5*time.Second),
			CacheTTL:        getEnvAsDuration("QUOTE_CACHE_TTL", 60*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("750ms") or a bare number of milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if ms := getEnvAsInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
