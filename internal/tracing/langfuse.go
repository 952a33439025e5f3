// Package tracing wires optional Langfuse observability into the eino
// callback chain. Tracing is opt-in: without a Langfuse key pair in the
// environment the server runs untraced.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost targets a self-hosted Langfuse next to a local docsage
// deployment. Hosted Langfuse requires LANGFUSE_HOST to be set explicitly.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler from the LANGFUSE_PUBLIC_KEY,
// LANGFUSE_SECRET_KEY, and LANGFUSE_HOST environment variables. It reports
// ok=false when the key pair is absent. The returned flush function must run
// before process exit or buffered traces are dropped.
func Setup() (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})
	return handler, flush, true
}
