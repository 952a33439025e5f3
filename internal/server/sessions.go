package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/store"
)

// handleListSessions handles GET /api/sessions, returning the caller's
// sessions newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerID(ctx)

	sessions, err := s.store.ListSessions(ctx, caller)
	if err != nil {
		logging.FromContext(ctx).Error("sessions: list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionResponse{
			ID:        sess.ID,
			Title:     sess.Title,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logging.FromContext(ctx).Error("sessions: encode failed", slog.Any("error", err))
	}
}

// handleSessionTurns handles GET /api/sessions/{id}/turns, returning the
// session's transcript in creation order. A session the caller does not own is
// indistinguishable from one that does not exist.
func (s *Server) handleSessionTurns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := CallerID(ctx)
	sessionID := r.PathValue("id")

	turns, err := s.store.Turns(ctx, caller, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		logging.FromContext(ctx).Error("sessions: turns failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}

	out := make([]turnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnResponse{
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logging.FromContext(ctx).Error("sessions: encode failed", slog.Any("error", err))
	}
}
