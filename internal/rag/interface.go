// Package rag defines the interfaces for retrieval-augmented generation:
// embedding, owner-scoped vector storage, and passage retrieval. Concrete
// implementations (Qdrant, etc.) satisfy these interfaces so the orchestration
// layer never depends on a specific backend.
//
// Every stored chunk is tagged with the id of the caller who uploaded it, and
// every search is filtered by that tag. Cross-tenant leakage is a correctness
// violation, not a tuning concern, so the filter is applied unconditionally.
package rag

import (
	"context"
)

// Chunk is a unit of document text stored in the vector index.
type Chunk struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Text is the raw chunk content.
	Text string

	// DocumentID is the stable id of the owning document. Vector cleanup is
	// keyed by this id, never by filename.
	DocumentID string

	// Filename is the name of the originating document.
	Filename string

	// OwnerID is the id of the caller who owns this chunk.
	OwnerID string
}

// Passage is a ranked snippet returned by retrieval. Passages are ephemeral:
// they live for one request and are never persisted.
type Passage struct {
	// Text is the retrieved chunk content.
	Text string

	// Source is the originating document name, or a placeholder when the
	// stored metadata is missing.
	Source string

	// Score is the similarity score assigned by the index. Descending score
	// order defines rank.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search performs a similarity search restricted to chunks owned by
	// ownerID and returns up to topK passages in descending score order.
	Search(ctx context.Context, queryEmbedding []float32, ownerID string, topK int) ([]Passage, error)

	// DeleteDocument removes every chunk belonging to the given document,
	// scoped to its owner.
	DeleteDocument(ctx context.Context, ownerID, documentID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface the chat pipeline uses to fetch
// grounding passages for a query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns up to topK passages relevant to query, restricted to
	// documents owned by ownerID.
	Retrieve(ctx context.Context, query, ownerID string, topK int) ([]Passage, error)
}
