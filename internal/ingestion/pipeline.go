// Package ingestion implements the document ingestion pipeline.
// It chunks uploaded document text, embeds each chunk, upserts the results
// into the vector store, and records the document in the metadata store.
// The pipeline serves both the upload API endpoint and the `docsage ingest`
// CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/store"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters consecutive chunks share.
	// Defaults to 200 if zero; a negative value disables overlap entirely.
	ChunkOverlap int

	// UpsertBatchSize is the number of chunks written to the vector store per
	// call. Defaults to 100 if zero.
	UpsertBatchSize int
}

// Result reports what a successful ingestion produced.
type Result struct {
	// DocumentID is the id of the new document, shared by its metadata row
	// and every vector point.
	DocumentID string

	// Chunks is the number of chunks embedded and stored.
	Chunks int
}

// Pipeline orchestrates the chunk → embed → upsert → record flow for
// uploaded documents, and the reverse flow for deletions.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// vectors persists the embedded chunks.
	vectors rag.VectorStore

	// docs records document metadata for listings and ownership checks.
	docs store.Store

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, vectors rag.VectorStore, docs store.Store, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("ingestion: vector store must not be nil")
	}
	if docs == nil {
		return nil, fmt.Errorf("ingestion: document store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}

	return &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		docs:     docs,
		cfg:      cfg,
	}, nil
}

// Ingest chunks, embeds, and stores one document for ownerID. The vectors
// are written first; the metadata row follows, so a document is never
// listable before it is searchable. A metadata row failure after the vectors
// landed is logged and swallowed — the content is already usable for
// retrieval and re-uploading heals the listing.
func (p *Pipeline) Ingest(ctx context.Context, ownerID, filename, content string) (*Result, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("ingestion: owner id must not be empty")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("ingestion: document %q has no text content", filename)
	}

	docID := uuid.NewString()
	texts := p.chunk(content)

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: embedding failed for %q: %w", filename, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("ingestion: expected %d embeddings for %q, got %d", len(texts), filename, len(embeddings))
	}

	chunks := make([]rag.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, rag.Chunk{
			ID:         chunkID(docID, i),
			Text:       text,
			DocumentID: docID,
			Filename:   filename,
			OwnerID:    ownerID,
		})
	}

	for start := 0; start < len(chunks); start += p.cfg.UpsertBatchSize {
		end := start + p.cfg.UpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.vectors.Upsert(ctx, chunks[start:end], embeddings[start:end]); err != nil {
			return nil, fmt.Errorf("ingestion: upsert failed for %q: %w", filename, err)
		}
	}

	if _, err := p.docs.CreateDocument(ctx, ownerID, docID, filename); err != nil {
		logging.FromContext(ctx).Warn("ingestion: failed to record document metadata",
			slog.String("document_id", docID),
			slog.String("filename", filename),
			slog.Any("error", err),
		)
	}

	logging.FromContext(ctx).Info("ingestion: document ingested",
		slog.String("document_id", docID),
		slog.String("filename", filename),
		slog.Int("chunks", len(chunks)),
	)

	return &Result{DocumentID: docID, Chunks: len(chunks)}, nil
}

// Delete removes a document for ownerID. The metadata row is authoritative:
// its removal fails the call (including store.ErrNotFound for unknown or
// foreign ids). Vector cleanup afterwards is best-effort — orphaned vectors
// cannot surface because retrieval filters on owner and the row is gone from
// listings.
func (p *Pipeline) Delete(ctx context.Context, ownerID, documentID string) error {
	if err := p.docs.DeleteDocument(ctx, ownerID, documentID); err != nil {
		return err
	}

	if err := p.vectors.DeleteDocument(ctx, ownerID, documentID); err != nil {
		logging.FromContext(ctx).Warn("ingestion: vector cleanup failed",
			slog.String("document_id", documentID),
			slog.Any("error", err),
		)
	}
	return nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
// Offsets count runes, not bytes: chunk text ends up as a protobuf string
// payload in the vector store, which requires valid UTF-8.
func (p *Pipeline) chunk(text string) []string {
	runes := []rune(text)
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// chunkID derives a deterministic UUID for a chunk from its document id and
// index, so re-ingesting the same document id overwrites rather than
// duplicates points.
func chunkID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s#%d", docID, index))).String()
}
