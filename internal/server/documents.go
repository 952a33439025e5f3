package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/store"
)

// maxUploadBytes bounds the size of an uploaded document. 10 MiB of plain
// text is far beyond any handbook chapter; bigger files should be split.
const maxUploadBytes = 10 << 20

// handleListDocuments handles GET /api/documents, returning the caller's
// documents newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerID(ctx)

	docs, err := s.store.ListDocuments(ctx, caller)
	if err != nil {
		logging.FromContext(ctx).Error("documents: list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{
			ID:        d.ID,
			Name:      d.Name,
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logging.FromContext(ctx).Error("documents: encode failed", slog.Any("error", err))
	}
}

// handleUploadDocument handles POST /api/documents/upload. It accepts a
// multipart form with a "file" field, ingests the content through the
// pipeline, and returns the new document's id and chunk count.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	caller := CallerID(ctx)

	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart form must contain a \"file\" field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("documents: read upload failed", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	res, err := s.pipeline.Ingest(ctx, caller, header.Filename, string(content))
	if err != nil {
		log.Error("documents: ingest failed",
			slog.String("filename", header.Filename),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	log.Info("document ingested",
		slog.String("document_id", res.DocumentID),
		slog.String("filename", header.Filename),
		slog.Int("chunks", res.Chunks),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(uploadResponse{
		ID:     res.DocumentID,
		Name:   header.Filename,
		Chunks: res.Chunks,
	})
}

// handleDeleteDocument handles POST /api/documents/delete. The metadata row is
// authoritative: an id the caller does not own yields 404 regardless of
// whether stray vectors exist.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerID(ctx)

	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}

	var req deleteDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "body must contain a document id")
		return
	}

	if err := s.pipeline.Delete(ctx, caller, req.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logging.FromContext(ctx).Error("documents: delete failed",
			slog.String("document_id", req.ID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
