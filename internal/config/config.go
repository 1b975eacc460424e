package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	ServiceName string
	CORSOrigins []string
	MaxFileSize int64

	// MongoDB (durable document store). Empty URI selects the in-memory store.
	MongoURI          string
	DBName            string
	MongoCollection   string
	DeleteBatchSize   int
	CompressThreshold int

	// Gemini
	GeminiAPIKey       string
	GeminiModel        string
	GeminiTemperature  float64
	GeminiMaxTokens    int
	GeminiTier         string
	EmbeddingsModel    string
	EmbeddingBatchSize int

	// Retrieval pipeline
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	SimilarityK    int
	CorpusCacheTTL time.Duration

	// Blocking work
	WorkerPoolSize    int
	GenerationTimeout time.Duration
	ExtractionTimeout time.Duration
	IndexBuildTimeout time.Duration

	// Uploads
	UploadDir           string
	UploadSweepInterval time.Duration
	UploadMaxAge        time.Duration

	// Redis Configuration (rate limiting, optional)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Tracing
	TracingEnabled   bool
	OTLPEndpoint     string
	TraceSampleRatio float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		ServiceName: getEnv("SERVICE_NAME", "pdf-rag-chatbot"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		MongoURI:          getEnv("MONGO_URI", ""),
		DBName:            getEnv("DB_NAME", "rag_chatbot"),
		MongoCollection:   getEnv("MONGO_COLLECTION", "pdf_documents"),
		DeleteBatchSize:   getEnvInt("DELETE_BATCH_SIZE", 500),
		CompressThreshold: getEnvInt("COMPRESS_THRESHOLD", 16384),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTemperature:  getEnvFloat64("GEMINI_TEMPERATURE", 0.3),
		GeminiMaxTokens:    getEnvInt("GEMINI_MAX_TOKENS", 2048),
		GeminiTier:         getEnv("GEMINI_TIER", "free"),
		EmbeddingsModel:    getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingBatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 100),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
		RetrievalK:     getEnvInt("RETRIEVAL_K", 5),
		SimilarityK:    getEnvInt("SIMILARITY_K", 3),
		CorpusCacheTTL: getEnvSeconds("CORPUS_CACHE_TTL", 300),

		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 16),
		GenerationTimeout: getEnvSeconds("GENERATION_TIMEOUT", 60),
		ExtractionTimeout: getEnvSeconds("EXTRACTION_TIMEOUT", 120),
		IndexBuildTimeout: getEnvSeconds("INDEX_BUILD_TIMEOUT", 300),

		UploadDir:           getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "pdf-rag-uploads")),
		UploadSweepInterval: getEnvSeconds("UPLOAD_SWEEP_INTERVAL", 600),
		UploadMaxAge:        getEnvSeconds("UPLOAD_MAX_AGE", 3600),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and the numeric invariants of the pipeline.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.RetrievalK <= 0 || c.SimilarityK <= 0 {
		return fmt.Errorf("RETRIEVAL_K and SIMILARITY_K must be positive")
	}
	if c.DeleteBatchSize <= 0 {
		return fmt.Errorf("DELETE_BATCH_SIZE must be positive, got %d", c.DeleteBatchSize)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.GenerationTimeout <= 0 || c.ExtractionTimeout <= 0 || c.IndexBuildTimeout <= 0 || c.CorpusCacheTTL <= 0 {
		return fmt.Errorf("timeouts and CORPUS_CACHE_TTL must be positive")
	}
	return nil
}

// DurableStoreConfigured reports whether the Mongo backend should be attempted.
func (c *Config) DurableStoreConfigured() bool {
	return c.MongoURI != ""
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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

// getEnvSeconds reads an integer number of seconds.
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
