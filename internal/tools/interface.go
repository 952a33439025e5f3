// Package tools defines the KnowledgeTool interface and the document-aware
// tool implementations that the chat engine can invoke during a conversation.
// Each tool satisfies both this package's interface and Eino's tool.BaseTool
// interface so they can be registered directly with the chat model.
//
// Tools are constructed per request with the caller's identity bound in: the
// model never supplies — and can never override — the owner whose documents
// a tool reads.
package tools

// KnowledgeTool is the interface that all document-aware tools must satisfy.
// It extends the basic Eino tool contract with a Name accessor so the engine
// can log and route tool calls by name without type assertions.
type KnowledgeTool interface {
	// Name returns the unique tool name registered with the engine.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}
