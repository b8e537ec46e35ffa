package rag

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"spec-extractor/internal/config"
	"spec-extractor/internal/embedding"
	"spec-extractor/internal/extractor"
	"spec-extractor/internal/helper"
	"spec-extractor/internal/models"
	"spec-extractor/internal/parser"
	"spec-extractor/internal/retriever"
)

var SampleQueries = []string{
	"Torque for brake caliper bolts",
	"Engine oil capacity",
	"Wheel nut torque",
	"Brake pad wear limit",
}

// Session holds the active knowledge base of one user session. It is not
// safe for concurrent use.
type Session struct {
	ID string

	cfg        *config.Config
	parser     *parser.PDFParser
	embedder   embedding.Embedder
	extractor  *extractor.Extractor
	index      *retriever.Index
	activeFile string
}

// NewSession creates a session with an empty knowledge base. A nil extractor
// puts the session in retrieval-only mode.
func NewSession(cfg *config.Config, embedder embedding.Embedder, ext *extractor.Extractor) (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		cfg:       cfg,
		parser:    parser.NewPDFParser(cfg.Parser),
		embedder:  embedder,
		extractor: ext,
		index:     retriever.New(embedder),
	}, nil
}

// ActiveFile is the name of the document behind the current knowledge base.
func (s *Session) ActiveFile() string { return s.activeFile }

// Ready reports whether the session has a built knowledge base.
func (s *Session) Ready() bool { return s.index.Built() }

// RetrievalOnly reports whether queries skip the extraction step.
func (s *Session) RetrievalOnly() bool {
	return s.extractor == nil || s.cfg.Retrieval.RetrievalOnly
}

// BuildKnowledgeBase parses, chunks and indexes the PDF at filePath. The
// previous knowledge base stays active unless the new one builds.
func (s *Session) BuildKnowledgeBase(ctx context.Context, filePath string) (models.BuildStats, error) {
	return s.build(ctx, filePath, filePath)
}

// BuildFromReader indexes an uploaded document. The upload is staged in a
// temporary file that is removed before returning.
func (s *Session) BuildFromReader(ctx context.Context, name string, r io.Reader) (models.BuildStats, error) {
	path, cleanup, err := helper.SaveTemp(r, filepath.Ext(name))
	if err != nil {
		return models.BuildStats{Source: name}, err
	}
	defer cleanup()

	return s.build(ctx, path, name)
}

func (s *Session) build(ctx context.Context, path, source string) (models.BuildStats, error) {
	stats := models.BuildStats{Source: source}

	log.Info().Str("session", s.ID).Str("source", source).Msg("Parsing PDF")
	pages, err := s.parser.ExtractText(path)
	if err != nil {
		return stats, err
	}
	for i := range pages {
		pages[i].Metadata.Source = source
	}
	stats.Pages = len(pages)

	log.Info().Int("pages", len(pages)).Msg("Chunking pages")
	chunks, err := parser.Chunk(pages, s.cfg.Chunker.ChunkSize, s.cfg.Chunker.ChunkOverlap)
	if err != nil {
		return stats, err
	}
	stats.Chunks = len(chunks)

	index := retriever.New(s.embedder)
	if err := index.Build(ctx, chunks); err != nil {
		return stats, fmt.Errorf("build knowledge base from %s: %w", source, err)
	}
	if !index.Built() {
		log.Warn().Str("source", source).Msg("Document has no extractable text, keeping previous knowledge base")
		return stats, nil
	}

	if err := s.index.Reset(); err != nil {
		log.Warn().Err(err).Msg("Failed to release previous knowledge base")
	}
	s.index = index
	s.activeFile = source
	stats.Built = true

	log.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Knowledge base built")
	return stats, nil
}

// Retrieve returns the k chunks most similar to query. k outside 1..20 is
// replaced by the configured default or clamped.
func (s *Session) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	return s.index.Search(ctx, query, s.topK(k))
}

// Query retrieves chunks for query and, unless the session is retrieval-only,
// extracts spec records from them.
func (s *Session) Query(ctx context.Context, query string, k int) (*models.QueryResponse, error) {
	retrieved, err := s.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	response := &models.QueryResponse{
		Query:         query,
		Source:        s.activeFile,
		Chunks:        retrieved,
		RetrievalOnly: s.RetrievalOnly(),
	}
	if response.RetrievalOnly {
		return response, nil
	}

	chunks := make([]models.Chunk, len(retrieved))
	for i, r := range retrieved {
		chunks[i] = r.Chunk
	}

	records, err := s.extractor.Extract(ctx, query, chunks)
	if err != nil {
		return nil, err
	}
	if s.cfg.Extraction.VerifyGrounding {
		records, response.Dropped = extractor.VerifyGrounding(records, chunks)
		if len(response.Dropped) > 0 {
			log.Warn().Int("dropped", len(response.Dropped)).Msg("Dropped records not found in context")
		}
	}
	response.Records = records
	return response, nil
}

// Export saves the active knowledge base to filePath.
func (s *Session) Export(filePath string) error {
	if err := helper.CreateFolder(filepath.Dir(filePath)); err != nil {
		return err
	}
	return s.index.Export(filePath, s.cfg.Store.Compress, s.cfg.Store.EncryptionKey)
}

// Import replaces the active knowledge base with one saved by Export. On
// failure the current knowledge base is kept.
func (s *Session) Import(ctx context.Context, filePath string) error {
	index := retriever.New(s.embedder)
	if err := index.Import(ctx, filePath, s.cfg.Store.EncryptionKey); err != nil {
		return err
	}
	if err := s.index.Reset(); err != nil {
		log.Warn().Err(err).Msg("Failed to release previous knowledge base")
	}
	s.index = index
	s.activeFile = filePath
	return nil
}

// Close releases the knowledge base.
func (s *Session) Close() error {
	s.activeFile = ""
	return s.index.Reset()
}

func (s *Session) topK(k int) int {
	if k <= 0 {
		k = s.cfg.Retrieval.TopK
	}
	if k <= 0 {
		k = models.DefaultTopK
	}
	if k > models.MaxTopK {
		k = models.MaxTopK
	}
	return k
}
