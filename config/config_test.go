package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `staging_dir: /data/staging
serving_dir: /data/serving

extraction:
  backend: ocr
  ai_services_endpoint: https://myresource.cognitiveservices.azure.com
  timeout_seconds: 60

vision:
  provider: gemini
  model: gemini-2.0-flash

embedding:
  dimensions: 768

weaviate_store_config:
  host: http://localhost:8080

workers:
  articles: 2
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "/data/staging", cfg.StagingDir)
	assert.Equal(t, "/data/serving", cfg.ServingDir)
	assert.Equal(t, "ocr", cfg.Extraction.Backend)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout())
	assert.Equal(t, "gemini", cfg.Vision.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "http://localhost:8080", cfg.WeaviateStoreConfig.Host)
	assert.Equal(t, 2, cfg.Workers.Articles)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "prebuilt-documentSearch", cfg.Extraction.AnalyzerID)
	assert.Equal(t, "mistral-document-ai-2512", cfg.Extraction.OCRDeployment)
	assert.Equal(t, "chromium", cfg.Extraction.ChromiumPath)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 4, cfg.Workers.Images)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay())
}

func TestLoadConfigBindsSecretsFromEnv(t *testing.T) {
	t.Setenv("AI_SERVICES_API_KEY", "extraction-secret")
	t.Setenv("OPENAI_API_KEY", "openai-secret")
	t.Setenv("GEMINI_API_KEY", "gemini-secret")
	t.Setenv("WEAVIATE_APIKEY", "weaviate-secret")

	cfg, err := LoadConfig(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "extraction-secret", cfg.Extraction.AIServicesAPIKey)
	assert.Equal(t, "openai-secret", cfg.Vision.OpenAIAPIKey)
	assert.Equal(t, "gemini-secret", cfg.Vision.GeminiAPIKey)
	assert.Equal(t, "openai-secret", cfg.Embedding.OpenAIAPIKey)
	assert.Equal(t, "weaviate-secret", cfg.WeaviateStoreConfig.APIKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Extraction.Backend = "ocr"
	cfg.Workers.Articles = 16

	ApplyDefaults(cfg)

	assert.Equal(t, "ocr", cfg.Extraction.Backend)
	assert.Equal(t, 16, cfg.Workers.Articles)

	fresh := &Config{}
	ApplyDefaults(fresh)
	assert.Equal(t, "direct", fresh.Extraction.Backend)
	assert.Equal(t, 4, fresh.Workers.Articles)
}
