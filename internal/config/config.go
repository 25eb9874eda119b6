package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Embeddings configuration
	EmbeddingsProvider      string // "google" (default), "local"
	GoogleEmbeddingsModel   string // e.g. "text-embedding-004"
	GeminiAPIKey            string
	VectorDimensions        int
	MaxConcurrentEmbeddings int
	EmbedTimeoutSeconds     int
	EmbedQueueWaitSeconds   int

	// Retrieval configuration
	SimilarityFloor     float64
	HighConfidenceMin   float64
	MediumConfidenceMin float64
	DefaultTopK         int
	MaxTopK             int
	OverFetchFactor     int
	IndexQueryTimeoutMS int

	// Response cache
	CacheTTLSeconds int
	CacheMaxEntries int

	// Index maintenance
	IndexBackend        string // only "memory" is supported
	ReindexCron         string
	ReindexLookbackMins int

	// API rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/islamic_qa"),
		DBName:      getEnv("DB_NAME", "islamic_qa"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Embeddings
		EmbeddingsProvider:      getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel:   getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		VectorDimensions:        getEnvInt("VECTOR_DIM", 768),
		MaxConcurrentEmbeddings: getEnvInt("MAX_CONCURRENT_EMBEDDINGS", 8),
		EmbedTimeoutSeconds:     getEnvInt("EMBED_TIMEOUT_SECONDS", 10),
		EmbedQueueWaitSeconds:   getEnvInt("EMBED_QUEUE_WAIT_SECONDS", 5),

		// Retrieval thresholds (rescaled cosine similarity in [0,1])
		SimilarityFloor:     getEnvFloat64("SIMILARITY_FLOOR", 0.30),
		HighConfidenceMin:   getEnvFloat64("HIGH_CONFIDENCE_THRESHOLD", 0.80),
		MediumConfidenceMin: getEnvFloat64("MEDIUM_CONFIDENCE_THRESHOLD", 0.55),
		DefaultTopK:         getEnvInt("DEFAULT_TOP_K", 5),
		MaxTopK:             getEnvInt("MAX_TOP_K", 20),
		OverFetchFactor:     getEnvInt("OVERFETCH_FACTOR", 3),
		IndexQueryTimeoutMS: getEnvInt("INDEX_QUERY_TIMEOUT_MS", 500),

		// Response cache
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 300),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 2048),

		// Index maintenance
		IndexBackend:        getEnv("INDEX_BACKEND", "memory"),
		ReindexCron:         getEnv("REINDEX_CRON", "*/15 * * * *"),
		ReindexLookbackMins: getEnvInt("REINDEX_LOOKBACK_MINUTES", 30),

		// API rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Telemetry
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",
	}

	// Validate required fields
	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.MediumConfidenceMin >= cfg.HighConfidenceMin {
		return nil, fmt.Errorf("MEDIUM_CONFIDENCE_THRESHOLD must be below HIGH_CONFIDENCE_THRESHOLD")
	}

	if cfg.SimilarityFloor > cfg.MediumConfidenceMin {
		return nil, fmt.Errorf("SIMILARITY_FLOOR must not exceed MEDIUM_CONFIDENCE_THRESHOLD")
	}

	if cfg.IndexBackend != "memory" {
		return nil, fmt.Errorf("INDEX_BACKEND %q is not supported, only \"memory\"", cfg.IndexBackend)
	}

	if cfg.OverFetchFactor < 1 {
		cfg.OverFetchFactor = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
