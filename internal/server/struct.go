package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docsage/docsage/internal/agent"
	"github.com/docsage/docsage/internal/history"
	"github.com/docsage/docsage/internal/ingestion"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/session"
	"github.com/docsage/docsage/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKeys maps bearer tokens to user ids for all protected /api/* routes.
	// If empty, authentication is disabled and every request runs as the
	// "local" user (development mode).
	APIKeys map[string]string
}

// Deps bundles the domain dependencies the server handlers drive.
type Deps struct {
	// Engine runs the generation loop for POST /api/chat.
	Engine *agent.Engine
	// Sessions resolves conversation identity and persists turns.
	Sessions *session.Manager
	// Store serves session and document listings.
	Store store.Store
	// Retriever performs ambient retrieval and backs the knowledge tool.
	// May be nil only in tests that never exercise chat.
	Retriever rag.Retriever
	// Pipeline serves document upload and deletion. May be nil in
	// deployments that ingest exclusively via the CLI.
	Pipeline *ingestion.Pipeline
}

// runner is the interface handleChat consumes the generation stream through.
// *agent.Engine satisfies it; tests inject a fake.
type runner interface {
	Run(ctx context.Context, req *agent.Request) <-chan agent.Event
}

// Server is the HTTP server that exposes the docsage API.
type Server struct {
	// runner produces the event stream for chat requests; set to the engine
	// in production, overridden by a fake in tests.
	runner runner
	// sessions resolves conversation identity and persists turns.
	sessions *session.Manager
	// store serves session and document listings.
	store store.Store
	// retriever performs ambient retrieval and backs the knowledge tool.
	retriever rag.Retriever
	// pipeline serves document upload and deletion.
	pipeline *ingestion.Pipeline
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// registry is the Prometheus registry backing GET /metrics.
	registry *prometheus.Registry
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Messages is the raw conversation transcript, oldest first. The last
	// user entry is the message to answer.
	Messages []history.RawTurn `json:"messages"`
	// SessionID resumes an existing conversation. Empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	// UseRetrieval disables ambient document retrieval when set to false.
	// Defaults to true.
	UseRetrieval *bool `json:"use_retrieval,omitempty"`
}

// deleteDocumentRequest is the JSON body for POST /api/documents/delete.
type deleteDocumentRequest struct {
	// ID is the document id to delete.
	ID string `json:"id"`
}

// documentResponse is one entry of the GET /api/documents listing.
type documentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// uploadResponse is the JSON response for POST /api/documents/upload.
type uploadResponse struct {
	// ID is the new document's id.
	ID string `json:"id"`
	// Name is the stored filename.
	Name string `json:"name"`
	// Chunks is the number of chunks embedded and stored.
	Chunks int `json:"chunks"`
}

// sessionResponse is one entry of the GET /api/sessions listing.
type sessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// turnResponse is one entry of the GET /api/sessions/{id}/turns listing.
type turnResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// errorResponse is the JSON body for all pre-stream error statuses.
type errorResponse struct {
	Error string `json:"error"`
}
