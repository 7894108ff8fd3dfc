package profile

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the eventsearch process.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the HTTP server
	Addr string
	// Port is the binding port for the HTTP server
	Port int
	// DSN points to the PostgreSQL database
	DSN string
	// Version is the current version of the server
	Version string

	// LLM configuration
	LLMProvider string // openai, deepseek, ollama
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string

	// Embedding configuration
	EmbeddingProvider   string // openai, siliconflow
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string

	// Inbound queue configuration
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Ingestion settings
	IngestWorkers     int
	IngestBatchSize   int
	IngestMaxRetries  int
	IngestCallTimeout time.Duration
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// All variables use the EVENTSEARCH_ prefix.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("EVENTSEARCH_LLM_PROVIDER", "openai")
	p.LLMModel = getEnvOrDefault("EVENTSEARCH_LLM_MODEL", "gpt-4o-mini")
	p.LLMAPIKey = os.Getenv("EVENTSEARCH_LLM_API_KEY")
	p.LLMBaseURL = os.Getenv("EVENTSEARCH_LLM_BASE_URL")

	p.EmbeddingProvider = getEnvOrDefault("EVENTSEARCH_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("EVENTSEARCH_EMBEDDING_MODEL", "intfloat/multilingual-e5-small")
	p.EmbeddingDimensions = getIntEnvOrDefault("EVENTSEARCH_EMBEDDING_DIMENSIONS", 384)
	p.EmbeddingAPIKey = os.Getenv("EVENTSEARCH_EMBEDDING_API_KEY")
	p.EmbeddingBaseURL = os.Getenv("EVENTSEARCH_EMBEDDING_BASE_URL")

	if brokers := os.Getenv("EVENTSEARCH_KAFKA_BROKERS"); brokers != "" {
		p.KafkaBrokers = strings.Split(brokers, ",")
	}
	p.KafkaTopic = getEnvOrDefault("EVENTSEARCH_KAFKA_TOPIC", "scraped-posts")
	p.KafkaGroupID = getEnvOrDefault("EVENTSEARCH_KAFKA_GROUP_ID", "eventsearch-ingest")

	p.IngestWorkers = getIntEnvOrDefault("EVENTSEARCH_INGEST_WORKERS", 4)
	p.IngestBatchSize = getIntEnvOrDefault("EVENTSEARCH_INGEST_BATCH_SIZE", 10)
	p.IngestMaxRetries = getIntEnvOrDefault("EVENTSEARCH_INGEST_MAX_RETRIES", 3)
	p.IngestCallTimeout = time.Duration(getIntEnvOrDefault("EVENTSEARCH_INGEST_CALL_TIMEOUT_SECONDS", 60)) * time.Second
}

// Validate checks the profile and fills safe defaults.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Addr == "" {
		p.Addr = "0.0.0.0"
	}
	if p.Port == 0 {
		p.Port = 8000
	}
	if p.DSN == "" {
		return errors.New("database DSN is required")
	}
	if p.IngestWorkers <= 0 {
		p.IngestWorkers = 4
	}
	if p.IngestBatchSize <= 0 {
		p.IngestBatchSize = 10
	}
	if p.IngestMaxRetries <= 0 {
		p.IngestMaxRetries = 3
	}
	if p.IngestCallTimeout <= 0 {
		p.IngestCallTimeout = 60 * time.Second
	}
	if p.EmbeddingDimensions <= 0 {
		p.EmbeddingDimensions = 384
	}
	return nil
}
