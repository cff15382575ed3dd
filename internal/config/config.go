package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Event store connection
	EventstoreURL    string  `yaml:"eventstore_url"`
	EventstoreAPIKey string  `yaml:"eventstore_api_key"`
	EventstoreRate   float64 `yaml:"eventstore_rate"` // requests per second, 0 = unlimited

	// Auth
	AlexandriaAPIKey string `yaml:"alexandria_api_key"`

	// Worker pool
	WorkerCount        int `yaml:"worker_count"`
	MaxQueueSize       int `yaml:"max_queue_size"`
	MaxConcurrentStore int `yaml:"max_concurrent_store"`
	MaxConcurrentFetch int `yaml:"max_concurrent_fetch"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Section splitting
	MaxSectionTokens int `yaml:"max_section_tokens"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:                 "8090",
		EventstoreURL:        "http://localhost:8080",
		EventstoreRate:       50,
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxConcurrentStore:   10,
		MaxConcurrentFetch:   8,
		MaxUploadBytes:       52428800, // 50MB
		MaxSectionTokens:     2000,
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// ALEXANDRIA_CONFIG if any, then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("ALEXANDRIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)

	cfg.EventstoreURL = envOr("EVENTSTORE_URL", cfg.EventstoreURL)
	cfg.EventstoreAPIKey = envOr("EVENTSTORE_API_KEY", cfg.EventstoreAPIKey)
	cfg.EventstoreRate = envFloat("EVENTSTORE_RATE", cfg.EventstoreRate)

	cfg.AlexandriaAPIKey = envOr("ALEXANDRIA_API_KEY", cfg.AlexandriaAPIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentStore = envInt("MAX_CONCURRENT_STORE", cfg.MaxConcurrentStore)
	cfg.MaxConcurrentFetch = envInt("MAX_CONCURRENT_FETCH", cfg.MaxConcurrentFetch)

	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.MaxSectionTokens = envInt("MAX_SECTION_TOKENS", cfg.MaxSectionTokens)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)

	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = def.MaxConcurrentStore
	}
	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = def.MaxConcurrentFetch
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxSectionTokens <= 0 {
		cfg.MaxSectionTokens = def.MaxSectionTokens
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.EventstoreRate < 0 {
		cfg.EventstoreRate = 0
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.EventstoreAPIKey == "" {
		return fmt.Errorf("EVENTSTORE_API_KEY is required")
	}
	if c.AlexandriaAPIKey == "" {
		return fmt.Errorf("ALEXANDRIA_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
