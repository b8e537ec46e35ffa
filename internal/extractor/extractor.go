package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"spec-extractor/internal/llmservice"
	"spec-extractor/internal/models"
)

// Extractor turns retrieved chunks into spec records with a single chat
// completion per query.
type Extractor struct {
	llm llmservice.ContentGenerator
}

func New(llm llmservice.ContentGenerator) *Extractor {
	return &Extractor{llm: llm}
}

// Extract asks the model for the specifications answering query in chunks.
// A response that cannot be parsed is logged and yields no records; errors
// from the model call itself are returned.
func (e *Extractor) Extract(ctx context.Context, query string, chunks []models.Chunk) ([]models.SpecRecord, error) {
	messages := BuildMessages(query, BuildContext(chunks))

	content, err := llmservice.GenerateContent(ctx, e.llm, messages, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	records, err := ParseRecords(content)
	if err != nil {
		log.Warn().Err(err).Str("response", content).Msg("Failed to parse JSON response")
		return []models.SpecRecord{}, nil
	}

	log.Debug().Str("query", query).Int("chunks", len(chunks)).Int("records", len(records)).Msg("Extracted specifications")
	return records, nil
}

// BuildContext joins chunk texts in retrieval order.
func BuildContext(chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, models.ContextSeparator)
}

func BuildMessages(query, contextBlock string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.ExtractionSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.ExtractionPromptTemplate, query, contextBlock)),
	}
}
