package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spec-extractor/internal/config"
	"spec-extractor/internal/embedding/embeddingtest"
	"spec-extractor/internal/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbeddingConfig
		wantName string
		wantErr  string
	}{
		{
			name:     "local",
			cfg:      config.EmbeddingConfig{Provider: config.ProviderLocal, Model: "all-minilm", BaseURL: config.DefaultLocalBaseURL},
			wantName: "local:all-minilm",
		},
		{
			name:     "remote",
			cfg:      config.EmbeddingConfig{Provider: config.ProviderRemote, Key: "sk-test"},
			wantName: "remote:text-embedding-3-small",
		},
		{
			name:    "remote without key",
			cfg:     config.EmbeddingConfig{Provider: config.ProviderRemote},
			wantErr: "embedding.key",
		},
		{
			name:    "local without model",
			cfg:     config.EmbeddingConfig{Provider: config.ProviderLocal},
			wantErr: "embedding.model",
		},
		{
			name:    "unknown provider",
			cfg:     config.EmbeddingConfig{Provider: "cohere"},
			wantErr: "embedding.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, err := New(tt.cfg)
			if tt.wantErr != "" {
				var cfgErr *models.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.wantErr, cfgErr.Field)
				assert.Nil(t, embedder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, embedder.Name())
		})
	}
}

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{
		{Text: "Brake caliper bolt torque: 35 Nm"},
		{Text: "Engine oil capacity: 4.2 L"},
		{Text: "Brake caliper bolt torque: 35 Nm"},
	}
	embedder := embeddingtest.New()

	vectors, err := EmbedChunks(context.Background(), embedder, chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, embeddingtest.DefaultDimension)
	}
	assert.Equal(t, vectors[0], vectors[2], "same text must embed to the same vector")
	assert.NotEqual(t, vectors[0], vectors[1])
	assert.Equal(t, 1, embedder.DocumentCalls)
}

func TestEmbedChunksEmpty(t *testing.T) {
	embedder := embeddingtest.New()

	vectors, err := EmbedChunks(context.Background(), embedder, nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, embedder.DocumentCalls)
}

func TestEmbedChunksProviderError(t *testing.T) {
	embedder := embeddingtest.New()
	embedder.Err = errors.New("connection refused")

	_, err := EmbedChunks(context.Background(), embedder, []models.Chunk{{Text: "wheel nut torque"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.Err)
	assert.Contains(t, err.Error(), "test:bag-of-words")
}

type raggedEmbedder struct{ *embeddingtest.BagOfWords }

func (r raggedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := r.BagOfWords.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	vectors[len(vectors)-1] = vectors[len(vectors)-1][:8]
	return vectors, nil
}

func TestEmbedChunksDimensionMismatch(t *testing.T) {
	embedder := raggedEmbedder{embeddingtest.New()}

	_, err := EmbedChunks(context.Background(), embedder, []models.Chunk{{Text: "front"}, {Text: "rear"}})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}
