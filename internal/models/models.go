package models

// ChunkMetadata is the provenance of a page or chunk.
type ChunkMetadata struct {
	Source     string `json:"source"`
	PageNumber int    `json:"page"`
}

// Page is the cropped text of one non-empty PDF page.
type Page struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Chunk is a bounded segment of a single page, the unit of embedding and retrieval.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// RetrievedChunk is a chunk returned by a similarity search.
type RetrievedChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}

// SpecRecord is one extracted vehicle specification.
type SpecRecord struct {
	Component  string `json:"component"`
	SpecType   string `json:"spec_type"`
	Value      string `json:"value"`
	Unit       string `json:"unit"`
	Conditions string `json:"conditions"`
}

// BuildStats summarizes a knowledge base build.
type BuildStats struct {
	Source string `json:"source"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
	Built  bool   `json:"built"`
}

// QueryResponse is what a session returns for one query.
type QueryResponse struct {
	Query         string           `json:"query"`
	Source        string           `json:"source"`
	Chunks        []RetrievedChunk `json:"chunks"`
	Records       []SpecRecord     `json:"records"`
	Dropped       []SpecRecord     `json:"dropped,omitempty"`
	RetrievalOnly bool             `json:"retrieval_only"`
}
