package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	StagingDir string `mapstructure:"staging_dir"`
	ServingDir string `mapstructure:"serving_dir"`

	Extraction          ExtractionConfig    `mapstructure:"extraction"`
	Vision              VisionConfig        `mapstructure:"vision"`
	Embedding           EmbeddingConfig     `mapstructure:"embedding"`
	WeaviateStoreConfig WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	Workers             WorkersConfig       `mapstructure:"workers"`
	Retry               RetryConfig         `mapstructure:"retry"`
}

type ExtractionConfig struct {
	Backend string `mapstructure:"backend"` // "direct" or "ocr"

	// Direct backend: document-analysis service.
	AIServicesEndpoint string `mapstructure:"ai_services_endpoint"`
	AIServicesAPIKey   string `mapstructure:"AI_SERVICES_API_KEY"`
	AnalyzerID         string `mapstructure:"analyzer_id"`

	// OCR backend.
	OCRDeployment string `mapstructure:"ocr_deployment"`
	ChromiumPath  string `mapstructure:"chromium_path"`

	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type VisionConfig struct {
	Provider     string `mapstructure:"provider"` // "openai" or "gemini"
	AIEndpoint   string `mapstructure:"ai_endpoint"`
	Model        string `mapstructure:"model"`
	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
}

type EmbeddingConfig struct {
	AIEndpoint   string `mapstructure:"ai_endpoint"`
	Model        string `mapstructure:"model"`
	Dimensions   int    `mapstructure:"dimensions"`
	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
}

type WeaviateStoreConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"WEAVIATE_APIKEY"`
}

type WorkersConfig struct {
	Articles int `mapstructure:"articles"`
	Images   int `mapstructure:"images"`
}

type RetryConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
}

func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

func (e ExtractionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables for secrets
	v.BindEnv("extraction.AI_SERVICES_API_KEY", "AI_SERVICES_API_KEY")
	v.BindEnv("vision.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("vision.GEMINI_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("embedding.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("weaviate_store_config.WEAVIATE_APIKEY", "WEAVIATE_APIKEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	ApplyDefaults(&config)

	return &config, nil
}

// ApplyDefaults fills zero-value fields with the defaults used across the
// pipeline. Exposed so commands that build a Config from flags get the same
// behavior as LoadConfig.
func ApplyDefaults(c *Config) {
	if c.Extraction.Backend == "" {
		c.Extraction.Backend = "direct"
	}
	if c.Extraction.AnalyzerID == "" {
		c.Extraction.AnalyzerID = "prebuilt-documentSearch"
	}
	if c.Extraction.OCRDeployment == "" {
		c.Extraction.OCRDeployment = "mistral-document-ai-2512"
	}
	if c.Extraction.ChromiumPath == "" {
		c.Extraction.ChromiumPath = "chromium"
	}
	if c.Extraction.TimeoutSeconds == 0 {
		c.Extraction.TimeoutSeconds = 180
	}
	if c.Vision.Provider == "" {
		c.Vision.Provider = "openai"
	}
	if c.Vision.Model == "" {
		c.Vision.Model = "gpt-4.1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Workers.Articles == 0 {
		c.Workers.Articles = 4
	}
	if c.Workers.Images == 0 {
		c.Workers.Images = 4
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelayMs == 0 {
		c.Retry.InitialDelayMs = 500
	}
}
