package llmservice

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"spec-extractor/internal/config"
	"spec-extractor/internal/models"
)

// ContentGenerator is the part of llms.Model the extractor needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewChatModel creates the remote chat model used for extraction. A missing
// API key is reported here rather than on the first request.
func NewChatModel(llmConfig config.ExtractionConfig) (ContentGenerator, error) {
	key := strings.TrimSpace(strings.TrimPrefix(llmConfig.Key, "Bearer "))
	if key == "" {
		return nil, &models.ConfigError{Field: "extraction.key", Msg: "OPENAI_API_KEY not set"}
	}

	log.Debug().Str("model", llmConfig.Model).Str("base_url", llmConfig.BaseURL).Msg("Creating chat model")

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// GenerateContent calls the model once and returns the text of the first choice.
func GenerateContent(ctx context.Context, llm ContentGenerator, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Content, nil
}
