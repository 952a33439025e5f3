// Package session manages conversation identity and turn persistence timing
// for the chat pipeline. It decides when a new session is created, and it
// encodes the asymmetric reliability contract around the generation stream:
// a user turn that cannot be saved aborts the request before any generation
// begins, while an assistant turn that cannot be saved after the stream has
// completed is logged and swallowed — the caller has already received the
// content, and corrupting a finished stream to report a storage error would
// be strictly worse.
package session

import (
	"context"
	"log/slog"

	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/store"
)

// maxTitleLen bounds the session title derived from the first query.
const maxTitleLen = 50

// Manager resolves conversation identity and persists turns.
type Manager struct {
	// store is the underlying session/turn storage.
	store store.Store
}

// NewManager constructs a Manager over the given store.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// ResolveOrCreate returns the session id for this request. A supplied id is
// trusted as-is for the current request — ownership is re-enforced by the
// storage layer's scoping on every subsequent read. When no id is supplied a
// new session is created lazily with a title derived from seedTitle.
func (m *Manager) ResolveOrCreate(ctx context.Context, ownerID, suppliedID, seedTitle string) (string, error) {
	if suppliedID != "" {
		return suppliedID, nil
	}
	sess, err := m.store.CreateSession(ctx, ownerID, truncateTitle(seedTitle))
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("owner_id", ownerID),
	)
	return sess.ID, nil
}

// PersistUserTurn records the caller's message. A failure here is fatal to
// the request: proceeding would produce an assistant reply with no matching
// recorded question.
func (m *Manager) PersistUserTurn(ctx context.Context, sessionID, content string) error {
	return m.store.AppendTurn(ctx, sessionID, store.RoleUser, content)
}

// PersistAssistantTurn records the engine's completed reply. Failures are
// logged and swallowed — the stream has already been delivered.
func (m *Manager) PersistAssistantTurn(ctx context.Context, sessionID, content string) {
	if content == "" {
		return
	}
	if err := m.store.AppendTurn(ctx, sessionID, store.RoleAssistant, content); err != nil {
		logging.FromContext(ctx).Warn("session: failed to persist assistant turn",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}

// truncateTitle clips the seed title to maxTitleLen characters, matching the
// title the session list shows for a conversation. The cut counts runes, not
// bytes, so a multi-byte seed never yields an invalid-UTF-8 title.
func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleLen {
		return s
	}
	return string(runes[:maxTitleLen])
}
