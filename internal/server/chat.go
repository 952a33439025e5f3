package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/docsage/docsage/internal/agent"
	"github.com/docsage/docsage/internal/history"
	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/tools"
)

// stepEvent is the JSON payload of an SSE "step" frame, emitted at each
// engine step boundary so clients can show tool activity while streaming.
type stepEvent struct {
	// FinishReason is the model's stop reason for the step, if reported.
	FinishReason string `json:"finish_reason,omitempty"`
	// ToolCalls names the tools the model requested this step, in call order.
	ToolCalls []string `json:"tool_calls,omitempty"`
	// ToolResults is the number of tool results fed back for this step.
	ToolResults int `json:"tool_results,omitempty"`
}

// handleChat handles POST /api/chat. It resolves the session, persists the
// user's turn, runs ambient retrieval, and streams the generation run as
// Server-Sent Events. All request validation happens before the first byte of
// the stream; failures past that point are reported as inline "error" frames
// because the HTTP status is already committed.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)
	caller := CallerID(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	lastQuery := history.LastUserQuery(req.Messages)
	if lastQuery == "" {
		writeError(w, http.StatusBadRequest, "messages must contain a non-empty user message")
		return
	}

	sessionID, err := s.sessions.ResolveOrCreate(ctx, caller, req.SessionID, lastQuery)
	if err != nil {
		log.Error("chat: session resolution failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not resolve session")
		return
	}

	// The user's turn must be durable before any generation starts. A reply
	// with no recorded question is worse than a failed request.
	if err := s.sessions.PersistUserTurn(ctx, sessionID, lastQuery); err != nil {
		log.Error("chat: failed to persist user turn",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "could not persist message")
		return
	}

	turns := history.Sanitize(req.Messages, lastQuery)
	passages := s.ambientRetrieve(ctx, req, lastQuery, caller)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-Id", sessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := &sseWriter{w: w, flusher: flusher}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()

	events := s.runner.Run(ctx, &agent.Request{
		Turns:    turns,
		Passages: passages,
		Tools: []tool.InvokableTool{
			tools.NewQueryKnowledgeTool(s.retriever, caller),
			tools.NewListDocumentsTool(s.store, caller),
		},
	})

	outcome := "cancelled"
	for ev := range events {
		switch e := ev.(type) {
		case agent.TextDelta:
			if _, err := sw.Write([]byte(e.Text)); err != nil {
				// Client went away; drain the run via ctx cancellation upstream.
				log.Warn("chat: write to client failed", slog.Any("error", err))
			}
		case agent.StepBoundary:
			payload, _ := json.Marshal(stepEvent{
				FinishReason: e.FinishReason,
				ToolCalls:    e.ToolCalls,
				ToolResults:  e.ToolResults,
			})
			sw.event("step", string(payload))
		case agent.Done:
			outcome = "ok"
			// Skip persistence when the client disconnected mid-write: the
			// context carries the cancellation and the append would fail anyway.
			if ctx.Err() == nil {
				s.sessions.PersistAssistantTurn(ctx, sessionID, e.Text)
			}
			sw.event("done", "[DONE]")
		case agent.Error:
			outcome = "error"
			log.Error("chat: generation failed",
				slog.String("session_id", sessionID),
				slog.String("message", e.Message),
			)
			sw.event("error", e.Message)
		}
	}

	if outcome == "cancelled" && errors.Is(ctx.Err(), context.Canceled) {
		log.Info("chat: client disconnected", slog.String("session_id", sessionID))
	}

	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// ambientRetrieve fetches grounding passages for the final user message.
// Retrieval is best-effort: a failure degrades to generation without grounding
// rather than failing the request. Returns nil when retrieval is disabled for
// this request or no retriever is wired.
func (s *Server) ambientRetrieve(ctx context.Context, req chatRequest, query, caller string) []rag.Passage {
	if s.retriever == nil {
		return nil
	}
	if req.UseRetrieval != nil && !*req.UseRetrieval {
		return nil
	}

	passages, err := s.retriever.Retrieve(ctx, query, caller, rag.AmbientTopK)
	if err != nil {
		logging.FromContext(ctx).Warn("chat: ambient retrieval failed, continuing ungrounded",
			slog.Any("error", err),
		)
		return nil
	}
	return passages
}
