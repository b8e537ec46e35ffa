package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"spec-extractor/internal/models"
)

// Separators are tried in order; "" splits by character as a last resort.
var Separators = []string{"\n\n", "\n", " ", ""}

// Chunk splits every page into overlapping segments of at most chunkSize
// runes. Chunks never span pages and carry their page metadata unchanged.
func Chunk(pages []models.Page, chunkSize, chunkOverlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, &models.ConfigError{Field: "chunk_size", Msg: "must be > 0"}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, &models.ConfigError{Field: "chunk_overlap", Msg: "must be >= 0 and < chunk_size"}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(Separators),
	)

	var chunks []models.Chunk
	for _, page := range pages {
		texts, err := splitPage(splitter, page.Text, chunkSize)
		if err != nil {
			return nil, fmt.Errorf("split page %d of %s: %w", page.Metadata.PageNumber, page.Metadata.Source, err)
		}
		for _, text := range texts {
			chunks = append(chunks, models.Chunk{
				Text:     text,
				Metadata: page.Metadata,
			})
		}
	}

	log.Debug().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Chunked pages")
	return chunks, nil
}

func splitPage(splitter textsplitter.RecursiveCharacter, text string, chunkSize int) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}, nil
	}
	return splitter.SplitText(text)
}
