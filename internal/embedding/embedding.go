package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"spec-extractor/internal/config"
	"spec-extractor/internal/models"
)

// Provider enumerates the embedding backends.
type Provider string

const (
	ProviderLocal  Provider = config.ProviderLocal
	ProviderRemote Provider = config.ProviderRemote
)

// Embedder maps text to fixed-dimension vectors. EmbedDocuments is used when
// building an index and EmbedQuery at search time; both must agree on the
// dimension. Name identifies provider and model.
type Embedder interface {
	embeddings.Embedder
	Name() string
}

type namedEmbedder struct {
	embeddings.Embedder
	name string
}

func (e *namedEmbedder) Name() string { return e.name }

// New constructs the embedder selected by cfg.Provider. Missing credentials
// for the remote provider fail here, before any document work starts.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch Provider(cfg.Provider) {
	case ProviderLocal:
		return NewOllamaEmbedder(cfg)
	case ProviderRemote:
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, &models.ConfigError{Field: "embedding.provider", Msg: fmt.Sprintf("unsupported embedding provider: %q", cfg.Provider)}
	}
}

// NewOllamaEmbedder embeds with a model served by a local Ollama instance.
func NewOllamaEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	if cfg.Model == "" {
		return nil, &models.ConfigError{Field: "embedding.model", Msg: "local provider requires a model identifier"}
	}

	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating local embedder")

	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &namedEmbedder{Embedder: embedder, name: string(ProviderLocal) + ":" + cfg.Model}, nil
}

// NewOpenAIEmbedder embeds with the OpenAI API using a fixed model.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	key := strings.TrimSpace(strings.TrimPrefix(cfg.Key, "Bearer "))
	if key == "" {
		return nil, &models.ConfigError{Field: "embedding.key", Msg: "OPENAI_API_KEY not found in environment variables"}
	}

	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": config.RemoteEmbeddingModel,
	}).Msg("Creating remote embedder")

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithEmbeddingModel(config.RemoteEmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &namedEmbedder{Embedder: embedder, name: string(ProviderRemote) + ":" + config.RemoteEmbeddingModel}, nil
}

// EmbedChunks embeds chunk texts in one batch and checks that every vector
// has the same, non-zero dimension.
func EmbedChunks(ctx context.Context, embedder Embedder, chunks []models.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks with %s: %w", len(texts), embedder.Name(), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts", embedder.Name(), len(vectors), len(texts))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder %s returned empty vectors", embedder.Name())
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("chunk %d has dimension %d, want %d: %w", i, len(v), dim, models.ErrDimensionMismatch)
		}
	}
	return vectors, nil
}
