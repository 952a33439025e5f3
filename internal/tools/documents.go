package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/docsage/docsage/internal/store"
)

// ListDocumentsTool is an Eino tool that lists the documents the current
// caller has uploaded. The model calls it to answer questions like "what
// files do I have?" without guessing from retrieval results.
type ListDocumentsTool struct {
	// store is the document metadata storage.
	store store.Store
	// ownerID scopes every listing to the calling user.
	ownerID string
}

// listDocumentsInput is the JSON-serialisable input schema for ListDocumentsTool.
type listDocumentsInput struct {
	// IncludeMetadata requests upload timestamps alongside names.
	IncludeMetadata bool `json:"include_metadata,omitempty"`
}

// documentEntry is one row of the tool's JSON output.
type documentEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// NewListDocumentsTool constructs a ListDocumentsTool bound to ownerID.
func NewListDocumentsTool(s store.Store, ownerID string) *ListDocumentsTool {
	return &ListDocumentsTool{store: s, ownerID: ownerID}
}

// Name returns the tool name registered with the engine.
func (t *ListDocumentsTool) Name() string { return "list_documents" }

// Description returns the LLM-facing description of this tool.
func (t *ListDocumentsTool) Description() string {
	return "Lists the documents the user has uploaded to their knowledge base. " +
		"Returns a JSON array of {id, name} entries. " +
		"Use this when the user asks what documents or files they have."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ListDocumentsTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"include_metadata": {
				Type: schema.Boolean,
				Desc: "Include upload timestamps in the listing.",
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *ListDocumentsTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input listDocumentsInput
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
			return "", fmt.Errorf("list_documents: invalid input: %w", err)
		}
	}

	docs, err := t.store.ListDocuments(ctx, t.ownerID)
	if err != nil {
		// Surface storage failures as a tool result so the model can tell the
		// user instead of the whole generation step failing.
		return fmt.Sprintf("Unable to list documents: %v", err), nil
	}

	if len(docs) == 0 {
		return "The user has not uploaded any documents yet.", nil
	}

	entries := make([]documentEntry, 0, len(docs))
	for _, d := range docs {
		e := documentEntry{ID: d.ID, Name: d.Name}
		if input.IncludeMetadata {
			e.UploadedAt = d.CreatedAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}

	out, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("list_documents: marshal output: %w", err)
	}
	return string(out), nil
}
