package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/store"
)

// fakeDocStore implements just enough of store.Store for tool tests.
type fakeDocStore struct {
	store.Store

	docs    map[string][]store.Document
	listErr error
}

func (f *fakeDocStore) ListDocuments(_ context.Context, ownerID string) ([]store.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.docs[ownerID], nil
}

// fakeRetriever returns canned passages keyed by owner.
type fakeRetriever struct {
	passages  []rag.Passage
	err       error
	gotOwner  string
	gotQuery  string
	gotTopK   int
	callCount int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, ownerID string, topK int) ([]rag.Passage, error) {
	f.callCount++
	f.gotQuery = query
	f.gotOwner = ownerID
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func Test_ListDocuments_ScopedToOwner(t *testing.T) {
	t.Parallel()

	fs := &fakeDocStore{docs: map[string][]store.Document{
		"alice": {{ID: "d1", Name: "handbook.md"}},
		"bob":   {{ID: "d2", Name: "secrets.md"}},
	}}
	tl := NewListDocumentsTool(fs, "alice")

	out, err := tl.InvokableRun(context.Background(), "{}")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var entries []documentEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Name != "handbook.md" {
		t.Errorf("got %v, want only alice's handbook.md", entries)
	}
	if strings.Contains(out, "secrets.md") {
		t.Error("another owner's document leaked into the listing")
	}
}

func Test_ListDocuments_IncludeMetadata(t *testing.T) {
	t.Parallel()

	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeDocStore{docs: map[string][]store.Document{
		"alice": {{ID: "d1", Name: "handbook.md", CreatedAt: uploaded}},
	}}
	tl := NewListDocumentsTool(fs, "alice")

	out, err := tl.InvokableRun(context.Background(), `{"include_metadata": true}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "2026-03-01T12:00:00Z") {
		t.Errorf("uploaded_at missing from output: %s", out)
	}
}

func Test_ListDocuments_EmptyAndErrorResults(t *testing.T) {
	t.Parallel()

	empty := NewListDocumentsTool(&fakeDocStore{docs: map[string][]store.Document{}}, "alice")
	out, err := empty.InvokableRun(context.Background(), "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "not uploaded any documents") {
		t.Errorf("empty listing should explain itself, got %q", out)
	}

	// Storage failures become tool results, not errors — the model should be
	// able to relay the problem instead of the step failing.
	broken := NewListDocumentsTool(&fakeDocStore{listErr: fmt.Errorf("db locked")}, "alice")
	out, err = broken.InvokableRun(context.Background(), "{}")
	if err != nil {
		t.Fatalf("storage failure must not surface as an error: %v", err)
	}
	if !strings.Contains(out, "db locked") {
		t.Errorf("result should describe the failure, got %q", out)
	}
}

func Test_QueryKnowledge_FormatsPassages(t *testing.T) {
	t.Parallel()

	fr := &fakeRetriever{passages: []rag.Passage{
		{Text: "Expense reports are due in 30 days.", Source: "policies.pdf", Score: 0.91},
		{Text: "Receipts over $25 must be attached.", Source: "policies.pdf", Score: 0.85},
	}}
	tl := NewQueryKnowledgeTool(fr, "alice")

	out, err := tl.InvokableRun(context.Background(), `{"query": "expense deadline"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "[Source: policies.pdf] Expense reports are due in 30 days.\n\n" +
		"[Source: policies.pdf] Receipts over $25 must be attached."
	if out != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}
	if fr.gotOwner != "alice" {
		t.Errorf("retriever called with owner %q, want alice", fr.gotOwner)
	}
	if fr.gotTopK != rag.ToolTopK {
		t.Errorf("retriever called with topK %d, want %d", fr.gotTopK, rag.ToolTopK)
	}
}

func Test_QueryKnowledge_NoMatches(t *testing.T) {
	t.Parallel()

	tl := NewQueryKnowledgeTool(&fakeRetriever{}, "alice")
	out, err := tl.InvokableRun(context.Background(), `{"query": "anything"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != noMatchResult {
		t.Errorf("got %q, want the no-match result", out)
	}
}

func Test_QueryKnowledge_RetrievalFailureBecomesResult(t *testing.T) {
	t.Parallel()

	fr := &fakeRetriever{err: fmt.Errorf("qdrant unreachable")}
	tl := NewQueryKnowledgeTool(fr, "alice")

	out, err := tl.InvokableRun(context.Background(), `{"query": "anything"}`)
	if err != nil {
		t.Fatalf("retrieval failure must not surface as an error: %v", err)
	}
	if !strings.Contains(out, "qdrant unreachable") {
		t.Errorf("result should describe the failure, got %q", out)
	}
}

func Test_QueryKnowledge_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	tl := NewQueryKnowledgeTool(&fakeRetriever{}, "alice")
	if _, err := tl.InvokableRun(context.Background(), `{}`); err == nil {
		t.Fatal("empty query must be rejected")
	}
	if _, err := tl.InvokableRun(context.Background(), `not json`); err == nil {
		t.Fatal("malformed input must be rejected")
	}
}
