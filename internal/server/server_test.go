package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docsage/docsage/internal/agent"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/session"
	"github.com/docsage/docsage/internal/store"
)

// ---------------------------------------------------------------------------
// Shared test doubles
// ---------------------------------------------------------------------------

// memStore is an in-memory store.Store for handler tests. Error fields inject
// failures per operation; zero value behaves like an empty database.
type memStore struct {
	store.Store

	sessions []store.Session
	turns    map[string][]store.Turn
	docs     []store.Document

	createSessionErr error
	appendTurnErr    error
	listDocsErr      error
	listSessionsErr  error
}

func newMemStore() *memStore {
	return &memStore{turns: make(map[string][]store.Turn)}
}

func (m *memStore) CreateSession(_ context.Context, ownerID, title string) (*store.Session, error) {
	if m.createSessionErr != nil {
		return nil, m.createSessionErr
	}
	sess := store.Session{
		ID:        fmt.Sprintf("sess-%d", len(m.sessions)+1),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	m.sessions = append(m.sessions, sess)
	return &sess, nil
}

func (m *memStore) ListSessions(_ context.Context, ownerID string) ([]store.Session, error) {
	if m.listSessionsErr != nil {
		return nil, m.listSessionsErr
	}
	var out []store.Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) AppendTurn(_ context.Context, sessionID string, role store.Role, content string) error {
	if m.appendTurnErr != nil {
		return m.appendTurnErr
	}
	m.turns[sessionID] = append(m.turns[sessionID], store.Turn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *memStore) Turns(_ context.Context, ownerID, sessionID string) ([]store.Turn, error) {
	for _, s := range m.sessions {
		if s.ID == sessionID && s.OwnerID == ownerID {
			return m.turns[sessionID], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListDocuments(_ context.Context, ownerID string) ([]store.Document, error) {
	if m.listDocsErr != nil {
		return nil, m.listDocsErr
	}
	var out []store.Document
	for _, d := range m.docs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) CreateDocument(_ context.Context, ownerID, id, name string) (*store.Document, error) {
	doc := store.Document{ID: id, OwnerID: ownerID, Name: name, CreatedAt: time.Now()}
	m.docs = append(m.docs, doc)
	return &doc, nil
}

func (m *memStore) DeleteDocument(_ context.Context, ownerID, id string) error {
	for i, d := range m.docs {
		if d.ID == id && d.OwnerID == ownerID {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeRunner replays a scripted event sequence instead of running a model.
type fakeRunner struct {
	// events is emitted in order on each Run call.
	events []agent.Event
	// gotReq records the last request passed to Run.
	gotReq *agent.Request
	// calls counts Run invocations.
	calls int
}

func (f *fakeRunner) Run(_ context.Context, req *agent.Request) <-chan agent.Event {
	f.calls++
	f.gotReq = req
	out := make(chan agent.Event, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out
}

// fakeRetriever records retrieval calls and returns scripted passages.
type fakeRetriever struct {
	passages []rag.Passage
	err      error

	calls    int
	gotQuery string
	gotOwner string
	gotTopK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, ownerID string, topK int) ([]rag.Passage, error) {
	f.calls++
	f.gotQuery = query
	f.gotOwner = ownerID
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

// newTestServer builds a bare *Server with hermetic metrics, enough for
// handlers that do not touch chat dependencies.
func newTestServer() *Server {
	return &Server{
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// newChatTestServer wires a *Server with the given runner, store, and
// retriever fakes. The session manager is real, backed by the fake store.
func newChatTestServer(r runner, st *memStore, ret rag.Retriever) *Server {
	s := newTestServer()
	s.runner = r
	s.store = st
	s.sessions = session.NewManager(st)
	s.retriever = ret
	return s
}
