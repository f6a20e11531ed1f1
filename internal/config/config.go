package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Relay    RelayConfig
	Context  ContextConfig
	Ai       AIConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// RelayConfig carries the relay tier's address, shared secret and the retry
// policy for degenerate generations.
type RelayConfig struct {
	Port             string
	URL              string
	Secret           string
	MaxRetries       int
	MinReplyChars    int
	RetryBackoff     time.Duration
	ExchangeTimeout  time.Duration
	Keepalive        time.Duration
	DialTimeout      time.Duration
	ResubmitStrategy string // "reconnect" | "resend"
}

// ContextConfig bounds the context-retrieval call independently of the
// overall exchange deadline.
type ContextConfig struct {
	URL      string
	Timeout  time.Duration
	MaxBytes int64
}

type AIConfig struct {
	LLMProvider   string
	LLMModel      string
	OllamaBaseURL string
}

type ChatConfig struct {
	// TitleTurnLimit is the number of leading user turns during which a
	// produced title may still be registered for a chat.
	TitleTurnLimit int
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
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Relay: RelayConfig{
			Port:             getEnv("RELAY_PORT", "9243"),
			URL:              getEnv("RELAY_URL", "ws://localhost:9243/ws"),
			Secret:           getEnv("RELAY_SECRET", ""),
			MaxRetries:       getEnvAsInt("RELAY_MAX_RETRIES", 3),
			MinReplyChars:    getEnvAsInt("RELAY_MIN_REPLY_CHARS", 10),
			RetryBackoff:     getEnvAsDuration("RELAY_RETRY_BACKOFF", time.Second),
			ExchangeTimeout:  getEnvAsDuration("RELAY_EXCHANGE_TIMEOUT", 120*time.Second),
			Keepalive:        getEnvAsDuration("RELAY_KEEPALIVE_INTERVAL", 30*time.Second),
			DialTimeout:      getEnvAsDuration("RELAY_DIAL_TIMEOUT", 10*time.Second),
			ResubmitStrategy: getEnv("RELAY_RESUBMIT_STRATEGY", "reconnect"),
		},
		Context: ContextConfig{
			URL:      getEnv("CONTEXT_URL", "http://localhost:8000/context"),
			Timeout:  getEnvAsDuration("CONTEXT_TIMEOUT", 15*time.Second),
			MaxBytes: int64(getEnvAsInt("CONTEXT_MAX_BYTES", 16*1024)),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Chat: ChatConfig{
			TitleTurnLimit: getEnvAsInt("CHAT_TITLE_TURN_LIMIT", 2),
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
