package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docsage/docsage/internal/ingestion"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/store"
)

// stubEmbedder returns one fixed vector per input text.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// stubVectors accepts every write and records nothing.
type stubVectors struct{}

func (stubVectors) Upsert(context.Context, []rag.Chunk, [][]float32) error { return nil }
func (stubVectors) Search(context.Context, []float32, string, int) ([]rag.Passage, error) {
	return nil, nil
}
func (stubVectors) DeleteDocument(context.Context, string, string) error { return nil }
func (stubVectors) Close() error                                         { return nil }

// newDocsTestServer wires a *Server with a real ingestion pipeline over stub
// embedding and vector backends and the shared in-memory store.
func newDocsTestServer(t *testing.T, st *memStore) *Server {
	t.Helper()
	p, err := ingestion.NewPipeline(stubEmbedder{}, stubVectors{}, st, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	s := newTestServer()
	s.store = st
	s.pipeline = p
	return s
}

// multipartBody builds a multipart form with a single "file" field.
func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleListDocuments(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.docs = []store.Document{
		{ID: "doc-1", OwnerID: devUser, Name: "handbook.md", CreatedAt: time.Unix(1700000000, 0)},
		{ID: "doc-2", OwnerID: "someone-else", Name: "private.md"},
	}
	s := newDocsTestServer(t, st)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	w := httptest.NewRecorder()
	s.handleListDocuments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []documentResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only the caller's document, got %d", len(out))
	}
	if out[0].ID != "doc-1" || out[0].Name != "handbook.md" {
		t.Errorf("unexpected listing entry: %+v", out[0])
	}
}

func TestHandleUploadDocument(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	s := newDocsTestServer(t, st)

	body, contentType := multipartBody(t, "onboarding.md", strings.Repeat("welcome aboard ", 20))
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	s.handleUploadDocument(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.Chunks == 0 {
		t.Errorf("unexpected upload response: %+v", resp)
	}
	if resp.Name != "onboarding.md" {
		t.Errorf("name: expected onboarding.md, got %q", resp.Name)
	}
	if len(st.docs) != 1 || st.docs[0].OwnerID != devUser {
		t.Errorf("metadata row not written for the caller: %+v", st.docs)
	}
}

func TestHandleUploadDocument_MissingFile(t *testing.T) {
	t.Parallel()

	s := newDocsTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	s.handleUploadDocument(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleUploadDocument_NoPipeline(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.store = newMemStore()

	body, contentType := multipartBody(t, "x.md", "content")
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	s.handleUploadDocument(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a pipeline, got %d", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.docs = []store.Document{{ID: "doc-1", OwnerID: devUser, Name: "old.md"}}
	s := newDocsTestServer(t, st)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/delete",
		strings.NewReader(`{"id":"doc-1"}`))
	w := httptest.NewRecorder()
	s.handleDeleteDocument(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(st.docs) != 0 {
		t.Errorf("document row should be gone, got %+v", st.docs)
	}
}

func TestHandleDeleteDocument_NotFound(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.docs = []store.Document{{ID: "doc-1", OwnerID: "someone-else", Name: "theirs.md"}}
	s := newDocsTestServer(t, st)

	// A foreign document is indistinguishable from a missing one.
	req := httptest.NewRequest(http.MethodPost, "/api/documents/delete",
		strings.NewReader(`{"id":"doc-1"}`))
	w := httptest.NewRecorder()
	s.handleDeleteDocument(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if len(st.docs) != 1 {
		t.Errorf("foreign document must not be deleted")
	}
}

func TestHandleDeleteDocument_EmptyID(t *testing.T) {
	t.Parallel()

	s := newDocsTestServer(t, newMemStore())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/delete",
		strings.NewReader(`{"id":""}`))
	w := httptest.NewRecorder()
	s.handleDeleteDocument(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
