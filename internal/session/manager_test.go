package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/docsage/docsage/internal/store"
)

// fakeStore implements just enough of store.Store for manager tests.
type fakeStore struct {
	store.Store

	createdTitle string
	appended     []store.Turn
	createErr    error
	appendErr    error
}

func (f *fakeStore) CreateSession(_ context.Context, ownerID, title string) (*store.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdTitle = title
	return &store.Session{ID: "generated-id", OwnerID: ownerID, Title: title}, nil
}

func (f *fakeStore) AppendTurn(_ context.Context, _ string, role store.Role, content string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, store.Turn{Role: role, Content: content})
	return nil
}

func Test_ResolveOrCreate_SuppliedIDTrusted(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	m := NewManager(fs)

	id, err := m.ResolveOrCreate(context.Background(), "owner", "existing-session", "seed")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "existing-session" {
		t.Errorf("got %q, want existing-session", id)
	}
	if fs.createdTitle != "" {
		t.Error("no session must be created when an id is supplied")
	}
}

func Test_ResolveOrCreate_LazyCreateTruncatesTitle(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	m := NewManager(fs)

	seed := "Explain quantum computing basics in detail please and thank you"
	id, err := m.ResolveOrCreate(context.Background(), "owner", "", seed)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "generated-id" {
		t.Errorf("got %q, want generated-id", id)
	}
	if fs.createdTitle != seed[:50] {
		t.Errorf("title: got %q, want first 50 chars of seed", fs.createdTitle)
	}
}

func Test_ResolveOrCreate_MultiByteTitleTruncated(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	m := NewManager(fs)

	// 80 runes of multi-byte text; a byte-offset cut would land mid-rune.
	seed := strings.Repeat("量子計算", 20)
	if _, err := m.ResolveOrCreate(context.Background(), "owner", "", seed); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !utf8.ValidString(fs.createdTitle) {
		t.Fatalf("title is invalid UTF-8: %q", fs.createdTitle)
	}
	if got := utf8.RuneCountInString(fs.createdTitle); got != 50 {
		t.Errorf("title length: got %d runes, want 50", got)
	}
	if want := string([]rune(seed)[:50]); fs.createdTitle != want {
		t.Errorf("title: got %q, want %q", fs.createdTitle, want)
	}
}

func Test_ResolveOrCreate_ShortTitleKept(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	m := NewManager(fs)

	if _, err := m.ResolveOrCreate(context.Background(), "owner", "", "short"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fs.createdTitle != "short" {
		t.Errorf("title: got %q, want short", fs.createdTitle)
	}
}

func Test_PersistUserTurn_FailureIsReturned(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{appendErr: fmt.Errorf("disk full")}
	m := NewManager(fs)

	if err := m.PersistUserTurn(context.Background(), "s", "question"); err == nil {
		t.Fatal("user-turn persistence failure must be surfaced")
	}
}

func Test_PersistAssistantTurn_FailureSwallowed(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{appendErr: fmt.Errorf("disk full")}
	m := NewManager(fs)

	// Must not panic and must not surface the error in any way.
	m.PersistAssistantTurn(context.Background(), "s", "answer")
}

func Test_PersistAssistantTurn_EmptyContentSkipped(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	m := NewManager(fs)

	m.PersistAssistantTurn(context.Background(), "s", "")
	if len(fs.appended) != 0 {
		t.Error("empty assistant content must not be persisted")
	}
	m.PersistAssistantTurn(context.Background(), "s", strings.Repeat("x", 10))
	if len(fs.appended) != 1 || fs.appended[0].Role != store.RoleAssistant {
		t.Errorf("assistant turn not persisted: %v", fs.appended)
	}
}
