package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"ai-plugin-engine/pkg/retry"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Engine    EngineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
	IngestTopic        string
}

type DatabaseConfig struct {
	Connection   string
	MaxOpenConns int
	MaxIdleConns int
	LogSQL       bool
}

type AIConfig struct {
	EmbeddingProvider   string // "openai", "ollama" or "gemini"
	EmbeddingModel      string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingBatchSize  int
	LLMProvider         string // "ollama", "openai" or "anthropic"
	LLMModel            string
	LLMBaseURL          string
	Temperature         float64
	MaxTokens           int
	OpenAIAPIKey        string
	AnthropicAPIKey     string
	GeminiAPIKey        string
}

type RetrievalConfig struct {
	TopK      int
	Threshold float64
}

type EngineConfig struct {
	CallTimeout        time.Duration
	Retries            int
	RetryDelay         time.Duration
	ReviewConcurrency  int
	ReviewSegmentSize  int
	ConditionMatchMode string // "substring" or "keyword"
	ProfileCacheTTL    time.Duration
	EmbeddingCacheTTL  time.Duration
	IngestLockTTL      time.Duration
	ChunkTargetSize    int
	ChunkMinSize       int
	ChunkMaxSize       int
	// ExpertTimeout bounds one expert turn: retrieval, generation and a
	// corrective regeneration, each with its own retries.
	ExpertTimeout      time.Duration
	// ExpertRetries repeats a whole expert turn. The calls inside a turn
	// already retry, so the default is 0.
	ExpertRetries      int
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "engine.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			IngestTopic:        getEnv("INGEST_TOPIC_NAME", "INGEST_DOCUMENT"),
		},
		Database: DatabaseConfig{
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			LogSQL:       getEnvAsBool("DB_LOG_SQL", false),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingBaseURL:    getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			EmbeddingBatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:            getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:          getEnv("LLM_BASE_URL", ""),
			Temperature:         getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:           getEnvAsInt("LLM_MAX_TOKENS", 1500),
			OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
			GeminiAPIKey:        getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:      getEnvAsInt("RETRIEVAL_TOP_K", 8),
			Threshold: getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.4),
		},
		Engine: EngineConfig{
			CallTimeout:        getEnvAsDuration("ENGINE_CALL_TIMEOUT", 30*time.Second),
			Retries:            getEnvAsInt("ENGINE_RETRIES", 1),
			RetryDelay:         getEnvAsDuration("ENGINE_RETRY_DELAY", 200*time.Millisecond),
			ReviewConcurrency:  getEnvAsInt("REVIEW_CONCURRENCY", 4),
			ReviewSegmentSize:  getEnvAsInt("REVIEW_SEGMENT_SIZE", 2000),
			ConditionMatchMode: getEnv("TREE_CONDITION_MATCH", "substring"),
			ProfileCacheTTL:    getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
			EmbeddingCacheTTL:  getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
			IngestLockTTL:      getEnvAsDuration("INGEST_LOCK_TTL", 10*time.Minute),
			ChunkTargetSize:    getEnvAsInt("CHUNK_TARGET_SIZE", 1000),
			ChunkMinSize:       getEnvAsInt("CHUNK_MIN_SIZE", 200),
			ChunkMaxSize:       getEnvAsInt("CHUNK_MAX_SIZE", 1500),
			ExpertRetries:      getEnvAsInt("ENGINE_EXPERT_RETRIES", 0),
		},
	}

	cfg.Engine.ExpertTimeout = getEnvAsDuration("ENGINE_EXPERT_TIMEOUT", cfg.CallPolicy().Budget(ExpertTurnCalls))
	return cfg
}

// ExpertTurnCalls is the number of sequential external calls in one expert
// turn: query embedding, generation and one corrective regeneration.
const ExpertTurnCalls = 3

// CallPolicy applies to every single external call.
func (c *Config) CallPolicy() retry.Policy {
	return retry.Policy{Timeout: c.Engine.CallTimeout, Retries: c.Engine.Retries, Delay: c.Engine.RetryDelay}
}

// ExpertPolicy applies to a whole expert turn in a collaboration.
func (c *Config) ExpertPolicy() retry.Policy {
	return retry.Policy{Timeout: c.Engine.ExpertTimeout, Retries: c.Engine.ExpertRetries, Delay: c.Engine.RetryDelay}
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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
