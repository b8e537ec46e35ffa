package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"spec-extractor/internal/models"
)

const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"

	DefaultLocalModel     = "all-minilm"
	DefaultLocalBaseURL   = "http://localhost:11434"
	RemoteEmbeddingModel  = "text-embedding-3-small"
	DefaultInferenceModel = "gpt-4o"
	apiKeyEnv             = "OPENAI_API_KEY"
	ollamaHostEnv         = "OLLAMA_HOST"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Parser     ParserConfig     `yaml:"parser"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ParserConfig holds the header and footer bands cut from every page, in PDF points.
type ParserConfig struct {
	HeaderHeight float64 `yaml:"header_height"`
	FooterHeight float64 `yaml:"footer_height"`
}

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbeddingConfig selects the embedding provider. Model is ignored for the
// remote provider, which always uses RemoteEmbeddingModel.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
}

type ExtractionConfig struct {
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	Key             string `yaml:"key"`
	VerifyGrounding bool   `yaml:"verify_grounding"`
}

type RetrievalConfig struct {
	TopK          int  `yaml:"top_k"`
	RetrievalOnly bool `yaml:"retrieval_only"`
}

// StoreConfig controls the optional knowledge base export file.
type StoreConfig struct {
	Path          string `yaml:"path"`
	EncryptionKey string `yaml:"encryption_key"`
	Compress      bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

func base() *Config {
	return &Config{
		Log: LogConfig{Level: "debug"},
		Parser: ParserConfig{
			HeaderHeight: models.DefaultHeaderHeight,
			FooterHeight: models.DefaultFooterHeight,
		},
		Chunker: ChunkerConfig{
			ChunkSize:    models.DefaultChunkSize,
			ChunkOverlap: models.DefaultChunkOverlap,
		},
		Embedding:  EmbeddingConfig{Provider: ProviderLocal},
		Extraction: ExtractionConfig{Model: DefaultInferenceModel},
		Retrieval:  RetrievalConfig{TopK: models.DefaultTopK},
	}
}

// LoadConfig reads a YAML config file. A missing file yields the defaults.
// Values from .env and the process environment fill empty credentials.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := base()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	key := os.Getenv(apiKeyEnv)
	if c.Embedding.Key == "" {
		c.Embedding.Key = key
	}
	if c.Extraction.Key == "" {
		c.Extraction.Key = key
	}
	if normalizeProvider(c.Embedding.Provider) == ProviderRemote {
		return
	}
	if host := os.Getenv(ollamaHostEnv); host != "" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = host
	}
}

func (c *Config) applyDefaults() {
	d := base()
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Chunker.ChunkSize == 0 {
		c.Chunker.ChunkSize = d.Chunker.ChunkSize
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	c.Embedding.Provider = normalizeProvider(c.Embedding.Provider)
	if c.Embedding.Provider == ProviderLocal {
		if c.Embedding.Model == "" {
			c.Embedding.Model = DefaultLocalModel
		}
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = DefaultLocalBaseURL
		}
	}
	if c.Extraction.Model == "" {
		c.Extraction.Model = d.Extraction.Model
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
}

// SetEmbeddingProvider overrides the configured provider. Switching providers
// drops the previous provider's model and server URL before defaults and
// environment fallbacks are applied again.
func (c *Config) SetEmbeddingProvider(provider string) {
	provider = normalizeProvider(provider)
	if provider == "" || provider == c.Embedding.Provider {
		return
	}
	c.Embedding.Provider = provider
	c.Embedding.Model = ""
	c.Embedding.BaseURL = ""
	c.applyEnv()
	c.applyDefaults()
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// Validate checks invariants that would otherwise fail late in the pipeline.
func (c *Config) Validate() error {
	if c.Parser.HeaderHeight < 0 {
		return &models.ConfigError{Field: "parser.header_height", Msg: "must be >= 0"}
	}
	if c.Parser.FooterHeight < 0 {
		return &models.ConfigError{Field: "parser.footer_height", Msg: "must be >= 0"}
	}
	if c.Chunker.ChunkSize <= 0 {
		return &models.ConfigError{Field: "chunker.chunk_size", Msg: "must be > 0"}
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return &models.ConfigError{Field: "chunker.chunk_overlap", Msg: "must be >= 0 and < chunk_size"}
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > models.MaxTopK {
		return &models.ConfigError{Field: "retrieval.top_k", Msg: "must be between 1 and 20"}
	}
	switch c.Embedding.Provider {
	case ProviderLocal, ProviderRemote:
	default:
		return &models.ConfigError{Field: "embedding.provider", Msg: "unsupported provider " + c.Embedding.Provider}
	}
	if n := len(c.Store.EncryptionKey); n != 0 && n != 32 {
		return &models.ConfigError{Field: "store.encryption_key", Msg: "must be 32 bytes"}
	}
	return nil
}
