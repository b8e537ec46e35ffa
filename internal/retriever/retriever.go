package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"spec-extractor/internal/chromemdb"
	"spec-extractor/internal/embedding"
	"spec-extractor/internal/models"
)

const collectionName = "knowledge_base"

// Index is an in-memory knowledge base of embedded chunks. It is bound to one
// embedder for its whole lifetime and is not safe for concurrent use.
//
// Similarity is cosine over normalized vectors; search is exact.
type Index struct {
	embedder embedding.Embedder
	store    *chromemdb.VectorDBManager
	chunks   []models.Chunk
	dim      int
}

func New(embedder embedding.Embedder) *Index {
	return &Index{embedder: embedder}
}

// Built reports whether a non-empty build or import has succeeded.
func (ix *Index) Built() bool { return ix.store != nil }

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) Dimension() int { return ix.dim }

// Build embeds and stores chunks. An empty input is a no-op. On error the
// index keeps whatever it held before.
func (ix *Index) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		log.Warn().Msg("No chunks to build knowledge base from")
		return nil
	}

	log.Info().Int("chunks", len(chunks)).Str("embedder", ix.embedder.Name()).Msg("Building vector store")

	vectors, err := embedding.EmbedChunks(ctx, ix.embedder, chunks)
	if err != nil {
		return err
	}

	store, err := chromemdb.NewVectorDBManager("", true, false)
	if err != nil {
		return err
	}
	if _, err := store.GetOrCreateCollection(collectionName, ix.embeddingFunc()); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        docID(i),
			Content:   c.Text,
			Metadata:  ix.metadata(c, i),
			Embedding: vectors[i],
		}
	}
	if err := store.CreateDocs(ctx, docs); err != nil {
		return err
	}

	ix.store = store
	ix.chunks = append([]models.Chunk(nil), chunks...)
	ix.dim = len(vectors[0])

	log.Info().Int("chunks", len(chunks)).Int("dimension", ix.dim).Msg("Vector store built successfully")
	return nil
}

// Search returns up to k chunks most similar to query, most similar first.
// Equal similarities keep insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	if !ix.Built() {
		return nil, models.ErrNotBuilt
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be > 0, got %d", k)
	}

	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w", len(vec), ix.dim, models.ErrDimensionMismatch)
	}

	// every document is scored so ties at the cut-off resolve by insertion order
	results, err := ix.store.SearchByEmbedding(ctx, vec, ix.store.Count())
	if err != nil {
		return nil, err
	}

	type scored struct {
		seq int
		sim float32
	}
	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		seq, err := strconv.Atoi(r.ID)
		if err != nil || seq < 0 || seq >= len(ix.chunks) {
			return nil, fmt.Errorf("unknown document id %q in vector store", r.ID)
		}
		ranked = append(ranked, scored{seq: seq, sim: r.Similarity})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].seq < ranked[j].seq
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]models.RetrievedChunk, k)
	for i := 0; i < k; i++ {
		out[i] = models.RetrievedChunk{Chunk: ix.chunks[ranked[i].seq], Similarity: ranked[i].sim}
	}

	log.Debug().Str("query", query).Int("k", k).Int("stored", len(ix.chunks)).Msg("Retrieved chunks")
	return out, nil
}

// Export writes the built index to filePath.
func (ix *Index) Export(filePath string, compress bool, encryptionKey string) error {
	if !ix.Built() {
		return models.ErrNotBuilt
	}
	return ix.store.Export(filePath, compress, encryptionKey)
}

// Import replaces the index contents with an exported knowledge base. The
// file must have been produced with the same embedder.
func (ix *Index) Import(ctx context.Context, filePath string, encryptionKey string) error {
	store, err := chromemdb.NewVectorDBManager("", true, false)
	if err != nil {
		return err
	}
	if err := store.Import(filePath, encryptionKey, collectionName, ix.embeddingFunc()); err != nil {
		return err
	}

	n := store.Count()
	if n == 0 {
		return fmt.Errorf("knowledge base %s is empty", filePath)
	}
	chunks := make([]models.Chunk, n)
	dim := 0
	for i := 0; i < n; i++ {
		doc, err := store.GetByID(ctx, docID(i))
		if err != nil {
			return fmt.Errorf("read document %d: %w", i, err)
		}
		if name := doc.Metadata[models.MetaEmbedder]; name != ix.embedder.Name() {
			return fmt.Errorf("knowledge base built with %q, current embedder is %q: %w", name, ix.embedder.Name(), models.ErrEmbedderMismatch)
		}
		if i == 0 {
			dim = len(doc.Embedding)
		} else if len(doc.Embedding) != dim {
			return fmt.Errorf("document %d: %w", i, models.ErrDimensionMismatch)
		}
		page, err := strconv.Atoi(doc.Metadata[models.MetaPageNumber])
		if err != nil {
			return fmt.Errorf("document %d has invalid page number: %w", i, err)
		}
		chunks[i] = models.Chunk{
			Text: doc.Content,
			Metadata: models.ChunkMetadata{
				Source:     doc.Metadata[models.MetaSource],
				PageNumber: page,
			},
		}
	}

	ix.store = store
	ix.chunks = chunks
	ix.dim = dim
	log.Info().Str("file", filePath).Int("chunks", n).Msg("Imported knowledge base")
	return nil
}

// Reset drops the stored vectors and returns the index to the unbuilt state.
func (ix *Index) Reset() error {
	if ix.store != nil {
		if err := ix.store.DeleteCollection(); err != nil {
			return err
		}
	}
	ix.store = nil
	ix.chunks = nil
	ix.dim = 0
	return nil
}

func (ix *Index) metadata(c models.Chunk, seq int) map[string]string {
	return map[string]string{
		models.MetaSource:     c.Metadata.Source,
		models.MetaPageNumber: strconv.Itoa(c.Metadata.PageNumber),
		models.MetaSequence:   strconv.Itoa(seq),
		models.MetaEmbedder:   ix.embedder.Name(),
	}
}

// embeddingFunc binds the index embedder to the chromem collection.
func (ix *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vec, err := ix.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, errors.New("empty embedding")
		}
		return vec, nil
	}
}

func docID(seq int) string {
	return fmt.Sprintf("%06d", seq)
}
