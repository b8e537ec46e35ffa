package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// VectorDBManager encapsulates the chromem-go database operations for one
// collection.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
}

// NewVectorDBManager initializes a new vector database manager. dbPath is
// only used by persistent databases.
func NewVectorDBManager(dbPath string, inMemory bool, compress bool) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// GetOrCreateCollection creates or reads a collection and binds it to the manager.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// CreateDocs adds documents. Documents without an embedding are embedded with
// the collection's embedding function.
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// SearchByEmbedding returns the n most similar documents by cosine similarity.
func (m *VectorDBManager) SearchByEmbedding(ctx context.Context, embedding []float32, n int) ([]chromem.Result, error) {
	if m.collection == nil {
		return nil, errors.New("collection is required")
	}
	if len(embedding) == 0 {
		return nil, errors.New("query embedding must be provided")
	}
	results, err := m.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) GetByID(ctx context.Context, id string) (chromem.Document, error) {
	if m.collection == nil {
		return chromem.Document{}, errors.New("collection is required")
	}
	return m.collection.GetByID(ctx, id)
}

func (m *VectorDBManager) DeleteCollection() error {
	if m.collection == nil {
		return nil
	}
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	return nil
}

// Export writes the bound collection to filePath, encrypted when
// encryptionKey is set.
func (m *VectorDBManager) Export(filePath string, compress bool, encryptionKey string) error {
	if m.collection == nil {
		return errors.New("collection is required")
	}
	if filePath == "" {
		return errors.New("file path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", filePath).Bool("compress", compress).
		Bool("encrypted", encryptionKey != "").Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, compress, encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads collectionName from filePath and binds it with embed.
func (m *VectorDBManager) Import(filePath, encryptionKey, collectionName string, embed chromem.EmbeddingFunc) error {
	if err := m.db.ImportFromFile(filePath, encryptionKey, collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(collectionName, embed)
	if c == nil {
		return fmt.Errorf("collection %s not found in %s", collectionName, filePath)
	}
	m.collection = c
	return nil
}
