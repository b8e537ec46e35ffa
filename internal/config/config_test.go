package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spec-extractor/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(apiKeyEnv, "")
	t.Setenv(ollamaHostEnv, "")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Equal(t, 50.0, cfg.Parser.HeaderHeight)
	assert.Equal(t, 50.0, cfg.Parser.FooterHeight)
	assert.Equal(t, 600, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, ProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, DefaultLocalModel, cfg.Embedding.Model)
	assert.Equal(t, DefaultLocalBaseURL, cfg.Embedding.BaseURL)
	assert.Equal(t, DefaultInferenceModel, cfg.Extraction.Model)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
log:
  level: info
parser:
  header_height: 36
  footer_height: 0
chunker:
  chunk_size: 800
  chunk_overlap: 120
embedding:
  provider: Remote
  key: sk-embed
extraction:
  model: gpt-4o-mini
  verify_grounding: true
retrieval:
  top_k: 8
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 36.0, cfg.Parser.HeaderHeight)
	assert.Equal(t, 0.0, cfg.Parser.FooterHeight)
	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 120, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, ProviderRemote, cfg.Embedding.Provider)
	assert.Equal(t, "sk-embed", cfg.Embedding.Key)
	assert.Empty(t, cfg.Embedding.BaseURL, "remote provider must not inherit the local server URL")
	assert.Equal(t, "gpt-4o-mini", cfg.Extraction.Model)
	assert.True(t, cfg.Extraction.VerifyGrounding)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv(apiKeyEnv, "sk-env")
	t.Setenv(ollamaHostEnv, "http://ollama:11434")

	path := writeConfig(t, `
extraction:
  key: sk-file
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedding.Key)
	assert.Equal(t, "sk-file", cfg.Extraction.Key)
	assert.Equal(t, "http://ollama:11434", cfg.Embedding.BaseURL)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, "chunker: [600"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "negative header", mutate: func(c *Config) { c.Parser.HeaderHeight = -1 }, field: "parser.header_height"},
		{name: "negative footer", mutate: func(c *Config) { c.Parser.FooterHeight = -5 }, field: "parser.footer_height"},
		{name: "zero chunk size", mutate: func(c *Config) { c.Chunker.ChunkSize = 0 }, field: "chunker.chunk_size"},
		{name: "overlap not below size", mutate: func(c *Config) { c.Chunker.ChunkOverlap = 600 }, field: "chunker.chunk_overlap"},
		{name: "negative overlap", mutate: func(c *Config) { c.Chunker.ChunkOverlap = -1 }, field: "chunker.chunk_overlap"},
		{name: "top k too small", mutate: func(c *Config) { c.Retrieval.TopK = 0 }, field: "retrieval.top_k"},
		{name: "top k too large", mutate: func(c *Config) { c.Retrieval.TopK = 21 }, field: "retrieval.top_k"},
		{name: "unknown provider", mutate: func(c *Config) { c.Embedding.Provider = "cohere" }, field: "embedding.provider"},
		{name: "short encryption key", mutate: func(c *Config) { c.Store.EncryptionKey = "secret" }, field: "store.encryption_key"},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var cfgErr *models.ConfigError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, "retrieval:\n  top_k: 50\n"))
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "retrieval.top_k", cfgErr.Field)
}

func TestSetEmbeddingProvider(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		provider    string
		wantModel   string
		wantBaseURL string
	}{
		{name: "local to remote", from: ProviderLocal, provider: "Remote", wantModel: "", wantBaseURL: ""},
		{name: "remote to local", from: ProviderRemote, provider: " LOCAL ", wantModel: DefaultLocalModel, wantBaseURL: DefaultLocalBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := LoadConfig(writeConfig(t, "embedding:\n  provider: "+tt.from+"\n  key: sk-test\n"))
			require.NoError(t, err)

			cfg.SetEmbeddingProvider(tt.provider)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, normalizeProvider(tt.provider), cfg.Embedding.Provider)
			assert.Equal(t, tt.wantModel, cfg.Embedding.Model)
			assert.Equal(t, tt.wantBaseURL, cfg.Embedding.BaseURL)
			assert.Equal(t, "sk-test", cfg.Embedding.Key)
		})
	}
}

func TestSetEmbeddingProviderKeepsSameProvider(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeConfig(t, "embedding:\n  provider: local\n  model: nomic-embed-text\n  base_url: http://gpu:11434\n"))
	require.NoError(t, err)

	cfg.SetEmbeddingProvider("Local")
	cfg.SetEmbeddingProvider("")
	assert.Equal(t, ProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "http://gpu:11434", cfg.Embedding.BaseURL)
}

func TestRemoteProviderIgnoresOllamaHost(t *testing.T) {
	t.Setenv(apiKeyEnv, "sk-env")
	t.Setenv(ollamaHostEnv, "http://ollama:11434")

	cfg, err := LoadConfig(writeConfig(t, "embedding:\n  provider: remote\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Embedding.BaseURL)
}
