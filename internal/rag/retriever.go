package rag

import (
	"context"
	"fmt"
)

// Retrieval depth constants. Ambient retrieval runs before every generation
// and favours precision; the explicit knowledge-search tool is invoked by the
// engine on demand and favours recall. Kept as two distinct constants — they
// reflect different precision/recall tradeoffs, do not unify them.
const (
	// AmbientTopK is the passage count for automatic pre-generation retrieval.
	AmbientTopK = 5
	// ToolTopK is the passage count for engine-initiated knowledge searches.
	ToolTopK = 7
)

// DefaultRetriever implements the Retriever interface by combining an Embedder
// and a VectorStore. It embeds the query at retrieval time and delegates
// owner-scoped similarity search to the store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the owner-filtered vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0; it defaults to AmbientTopK.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = AmbientTopK
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns up to topK passages owned by ownerID,
// in descending score order. If topK is 0 the configured default is used.
// Errors from the embedder or the store are returned to the caller, which
// decides whether to degrade (ambient mode) or report (tool mode) — retrieval
// failure never aborts the surrounding conversation.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query, ownerID string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}
	if ownerID == "" {
		return nil, fmt.Errorf("rag: ownerID must not be empty")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	passages, err := r.store.Search(ctx, embeddings[0], ownerID, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}
