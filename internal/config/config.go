// Package config loads service configuration from environment variables,
// with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Storage      StorageConfig
	Search       SearchConfig
	Embedding    EmbeddingConfig
	LLM          LLMConfig
	Chunking     ChunkingConfig
	Retrieval    RetrievalConfig
	OCR          OCRConfig
	Upstream     UpstreamConfig
	Ingest       IngestConfig
	LogLevel     string
	Environment  string
}

type ServerConfig struct {
	Host         string
	Port         string
	Mode         string // "debug" or "release"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	PoolSize int
}

// DSN returns a pgx-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.PoolSize)
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	RequestTimeout time.Duration
}

type SearchConfig struct {
	URL       string
	Username  string
	Password  string
	IndexName string
	Timeout   time.Duration
}

type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type ChunkingConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type RetrievalConfig struct {
	TopK            int
	VectorWeight    float64
	BM25Weight      float64
	ResultThreshold float64
}

type OCRConfig struct {
	BinaryPath    string
	Languages     string
	MinEdgePixels int
	Timeout       time.Duration
}

// UpstreamConfig points at the application that owns conversations and
// receives processing webhooks.
type UpstreamConfig struct {
	BaseURL        string
	InternalAPIKey string
	HistoryLimit   int
	Timeout        time.Duration
}

type IngestConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("PORT", "8000"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			User:     getEnv("DATABASE_USER", "postgres"),
			Password: getEnv("DATABASE_PASSWORD", "password"),
			Name:     getEnv("DATABASE_NAME", "chatbot_control_panel"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
			PoolSize: getIntEnv("DATABASE_POOL_SIZE", 10),
		},
		Storage: StorageConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:         getEnv("MINIO_BUCKET_NAME", "documents"),
			UseSSL:         getBoolEnv("MINIO_SECURE", false),
			RequestTimeout: getDurationEnv("MINIO_REQUEST_TIMEOUT", 60*time.Second),
		},
		Search: SearchConfig{
			URL:       getEnv("OPENSEARCH_URL", "http://localhost:9200"),
			Username:  getEnv("OPENSEARCH_USERNAME", "admin"),
			Password:  getEnv("OPENSEARCH_PASSWORD", "admin"),
			IndexName: getEnv("OPENSEARCH_INDEX", "documents"),
			Timeout:   getDurationEnv("OPENSEARCH_TIMEOUT", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getIntEnv("EMBEDDING_DIMENSION", 384),
			BatchSize: getIntEnv("EMBEDDING_BATCH_SIZE", 100),
			Timeout:   getDurationEnv("EMBEDDING_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("LLM_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("LLM_MODEL", "openai/gpt-oss-120b"),
			MaxTokens:   getIntEnv("LLM_MAX_TOKENS", 1500),
			Temperature: getFloatEnv("LLM_TEMPERATURE", 0.7),
			Timeout:     getDurationEnv("LLM_TIMEOUT", 120*time.Second),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    getIntEnv("CHUNK_SIZE", 512),
			ChunkOverlap: getIntEnv("CHUNK_OVERLAP", 50),
		},
		Retrieval: RetrievalConfig{
			TopK:            getIntEnv("TOP_K_RESULTS", 5),
			VectorWeight:    getFloatEnv("VECTOR_WEIGHT", 0.7),
			BM25Weight:      getFloatEnv("BM25_WEIGHT", 0.3),
			ResultThreshold: getFloatEnv("RESULT_THRESHOLD", 0.1),
		},
		OCR: OCRConfig{
			BinaryPath:    getEnv("TESSERACT_PATH", "tesseract"),
			Languages:     getEnv("TESSERACT_LANGUAGES", "eng+ind"),
			MinEdgePixels: getIntEnv("OCR_MIN_EDGE_PIXELS", 1200),
			Timeout:       getDurationEnv("OCR_TIMEOUT", 60*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("EXPRESS_API_URL", "http://localhost:3000"),
			InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
			HistoryLimit:   getIntEnv("CONVERSATION_HISTORY_LIMIT", 6),
			Timeout:        getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			Workers:   getIntEnv("INGEST_WORKERS", 4),
			QueueSize: getIntEnv("INGEST_QUEUE_SIZE", 64),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks settings that have no usable zero value.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap cannot be negative")
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.BM25Weight < 0 {
		return fmt.Errorf("retrieval weights cannot be negative")
	}
	if c.Retrieval.VectorWeight+c.Retrieval.BM25Weight == 0 {
		return fmt.Errorf("at least one retrieval weight must be positive")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest workers must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
