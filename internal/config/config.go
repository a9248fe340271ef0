package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries every knob the pipeline consumes. It is constructed once at
// startup and passed into each component's constructor.
type Config struct {
	DatabaseURL   string `env:"DATABASE_URL" envDefault:"gradeflow.db"`
	WorkspaceRoot string `env:"WORKSPACE_ROOT" envDefault:"."`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	Model        string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`

	// Minimum number of seconds between two remote batch status queries for
	// the same task. Between refreshes the cached status is served.
	BatchCheckInterval int64 `env:"BATCH_STATUS_CHECK_INTERVAL" envDefault:"60"`

	OCRBinary    string `env:"OCR_BINARY" envDefault:"ocrmypdf"`
	OCRLanguages string `env:"OCR_LANGUAGES" envDefault:"spa+eng+cat"`

	// One of "md5", "sha256", "sha512".
	DigestAlgorithm string `env:"DIGEST_ALGORITHM" envDefault:"sha256"`

	// Image duplicate detection thresholds, see internal/imaging.
	DHashMaxDistance        int `env:"DHASH_MAX_DISTANCE" envDefault:"4"`
	AHashMaxDistance        int `env:"AHASH_MAX_DISTANCE" envDefault:"6"`
	MinDuplicateClusterSize int `env:"MIN_DUPLICATE_CLUSTER_SIZE" envDefault:"3"`

	// Base URL of the optional synchronous grading service.
	AssessURL string `env:"ASSESS_URL" envDefault:"http://localhost:3000"`
}

func Load() (Config, error) {
	// Load .env file if it exists (useful for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, continuing with environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config from environment: %w", err)
	}

	if cfg.BatchCheckInterval <= 0 {
		log.Printf("Invalid BATCH_STATUS_CHECK_INTERVAL %d, using default 60", cfg.BatchCheckInterval)
		cfg.BatchCheckInterval = 60
	}

	return cfg, nil
}
