// Package store provides the SQLite-backed persistence layer for docsage:
// chat sessions, their turns, and uploaded document metadata. Every read is
// scoped by the owning caller's id — a session or document is only ever
// visible to the caller who created it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a persisted turn. Only user and assistant
// turns are persisted; system and tool-internal roles never reach storage.
type Role string

const (
	// RoleUser is a turn sent by the caller.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the generation engine.
	RoleAssistant Role = "assistant"
)

// ErrNotFound is returned when a session or document does not exist or is not
// owned by the requesting caller. The two cases are deliberately
// indistinguishable.
var ErrNotFound = errors.New("store: not found")

// Session is one conversation thread owned by a single caller.
type Session struct {
	// ID is the opaque session identifier.
	ID string
	// OwnerID is the caller who created the session.
	OwnerID string
	// Title is derived from the first query, truncated at creation time.
	Title string
	// CreatedAt is when the session was created.
	CreatedAt time.Time
}

// Turn is a single persisted message in a session.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Content is the text of the turn.
	Content string
	// CreatedAt is when the turn was persisted.
	CreatedAt time.Time
}

// Document is the metadata row for an uploaded document. The chunk vectors
// live in the vector index, keyed by this row's ID.
type Document struct {
	// ID is the stable document identifier used to key vector cleanup.
	ID string
	// OwnerID is the caller who uploaded the document.
	OwnerID string
	// Name is the original filename.
	Name string
	// CreatedAt is when the document was ingested.
	CreatedAt time.Time
}

// Store persists sessions, turns, and document metadata. Implementations must
// be safe for concurrent use.
type Store interface {
	// CreateSession inserts a new session for ownerID and returns it.
	CreateSession(ctx context.Context, ownerID, title string) (*Session, error)
	// GetSession returns the session with the given id if ownerID owns it.
	GetSession(ctx context.Context, ownerID, id string) (*Session, error)
	// ListSessions returns ownerID's sessions, newest first.
	ListSessions(ctx context.Context, ownerID string) ([]Session, error)
	// AppendTurn persists a single turn for the given session.
	AppendTurn(ctx context.Context, sessionID string, role Role, content string) error
	// Turns returns all turns of a session in creation order, provided
	// ownerID owns the session.
	Turns(ctx context.Context, ownerID, sessionID string) ([]Turn, error)

	// CreateDocument inserts a document metadata row under the given id and
	// returns it. The caller supplies the id so it can also key the
	// document's vectors.
	CreateDocument(ctx context.Context, ownerID, id, name string) (*Document, error)
	// ListDocuments returns ownerID's documents, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]Document, error)
	// DeleteDocument removes the document row if ownerID owns it.
	DeleteDocument(ctx context.Context, ownerID, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the docsage database.
// It resolves to ~/.docsage/docsage.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docsage")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "docsage.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT    PRIMARY KEY,
    owner_id     TEXT    NOT NULL,
    title        TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_sessions_owner_created
    ON sessions (owner_id, created_at);

CREATE TABLE IF NOT EXISTS turns (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_created
    ON turns (session_id, created_at);

CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    owner_id     TEXT    NOT NULL,
    name         TEXT    NOT NULL,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_owner_created
    ON documents (owner_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row with a generated id.
func (s *SQLiteStore) CreateSession(ctx context.Context, ownerID, title string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO sessions (id, owner_id, title, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.OwnerID, sess.Title, sess.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session if it exists and belongs to ownerID.
func (s *SQLiteStore) GetSession(ctx context.Context, ownerID, id string) (*Session, error) {
	const q = `SELECT id, owner_id, title, created_at FROM sessions WHERE id = ? AND owner_id = ?`
	var sess Session
	var ts int64
	err := s.db.QueryRowContext(ctx, q, id, ownerID).Scan(&sess.ID, &sess.OwnerID, &sess.Title, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.CreatedAt = time.Unix(ts, 0)
	return &sess, nil
}

// ListSessions returns ownerID's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, ownerID string) ([]Session, error) {
	const q = `SELECT id, owner_id, title, created_at FROM sessions WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var ts int64
		if err := rows.Scan(&sess.ID, &sess.OwnerID, &sess.Title, &ts); err != nil {
			return nil, fmt.Errorf("store: list sessions scan: %w", err)
		}
		sess.CreatedAt = time.Unix(ts, 0)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list sessions rows: %w", err)
	}
	return sessions, nil
}

// AppendTurn persists a single turn for the given session. Append-only:
// turns are never updated or deleted by this core.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID string, role Role, content string) error {
	const q = `INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sessionID, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append turn: %w", err)
	}
	return nil
}

// Turns returns all turns of a session in creation order. The join against
// sessions enforces owner scoping: an unowned session yields ErrNotFound.
func (s *SQLiteStore) Turns(ctx context.Context, ownerID, sessionID string) ([]Turn, error) {
	if _, err := s.GetSession(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}

	const q = `
SELECT role, content, created_at
FROM   turns
WHERE  session_id = ?
ORDER  BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts int64
		var role string
		if err := rows.Scan(&role, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: turns scan: %w", err)
		}
		t.Role = Role(role)
		t.CreatedAt = time.Unix(ts, 0)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: turns rows: %w", err)
	}
	return turns, nil
}

// CreateDocument inserts a document metadata row under the caller's id.
func (s *SQLiteStore) CreateDocument(ctx context.Context, ownerID, id, name string) (*Document, error) {
	doc := &Document{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	const q = `INSERT INTO documents (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.OwnerID, doc.Name, doc.CreatedAt.Unix()); err != nil {
		return nil, fmt.Errorf("store: create document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns ownerID's documents, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, ownerID string) ([]Document, error) {
	const q = `SELECT id, owner_id, name, created_at FROM documents WHERE owner_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &ts); err != nil {
			return nil, fmt.Errorf("store: list documents scan: %w", err)
		}
		d.CreatedAt = time.Unix(ts, 0)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list documents rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes the document row if ownerID owns it.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM documents WHERE id = ? AND owner_id = ?`
	res, err := s.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete document rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
