// Package agent implements the generation engine for docsage: a bounded
// model/tool loop over an Eino chat model. Each step streams one model
// response; when the model requests tools, the engine executes them, feeds
// the results back, and runs another step. Visible text is surfaced as it
// arrives so the transport can forward it without waiting for the run to
// finish.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/docsage/docsage/internal/budget"
	"github.com/docsage/docsage/internal/history"
	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/tools"
)

// systemPrompt is the base system prompt injected into every conversation.
// It establishes the assistant's persona and its grounding discipline.
const systemPrompt = `You are DocSage, a knowledgeable assistant that answers questions using the
user's own uploaded documents.

You have two tools:
- query_knowledge: searches the user's documents for passages relevant to a query
- list_documents: lists the documents the user has uploaded

Ground every factual claim about the user's documents in retrieved passages.
When a "Relevant Document Excerpts" section is present in this conversation,
prefer it; call query_knowledge when you need more or different passages, and
list_documents when the user asks what they have uploaded.

Rules:
- If the documents do not contain the answer, say so plainly — never invent
  content and attribute it to a document
- Cite the source document name when you quote or paraphrase a passage
- Answer general questions from your own knowledge, but make clear when an
  answer does not come from the user's documents
- Be concise; the user is reading your answer as it streams`

// maxSteps bounds the number of model responses per run. A model that keeps
// requesting tools past this limit ends the run with a terminal Error rather
// than looping forever.
const maxSteps = 5

// Config holds the dependencies required to construct an Engine.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// MaxContextTokens is the estimated token budget for the full input
	// context (system prompt + grounding + history + user message). History
	// is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Engine runs the bounded generation loop. It is stateless across runs and
// safe for concurrent use.
type Engine struct {
	chatModel        model.ToolCallingChatModel
	maxContextTokens int
}

// New constructs an Engine from the provided Config.
func New(cfg *Config) (*Engine, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	return &Engine{
		chatModel:        cfg.ChatModel,
		maxContextTokens: maxCtx,
	}, nil
}

// Request carries the per-run inputs. Tools are supplied per request because
// they are bound to the calling user's identity.
type Request struct {
	// Turns is the sanitized conversation: strictly alternating roles,
	// starting with a user turn, ending with the user message to answer.
	Turns []history.Turn

	// Passages is the ambient grounding retrieved for the final user message.
	// May be empty when retrieval found nothing or was unavailable.
	Passages []rag.Passage

	// Tools is the set of tools the model may call during this run.
	Tools []tool.InvokableTool
}

// Run executes the generation loop and returns the ordered event stream.
// The channel is closed after the terminal event. Cancelling ctx stops the
// run; events not yet consumed are dropped.
func (e *Engine) Run(ctx context.Context, req *Request) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		e.run(ctx, req, out)
	}()
	return out
}

func (e *Engine) run(ctx context.Context, req *Request, out chan<- Event) {
	log := logging.FromContext(ctx)

	msgs, err := e.buildMessages(req)
	if err != nil {
		emit(ctx, out, Error{Message: err.Error()})
		return
	}

	infos := make([]*schema.ToolInfo, 0, len(req.Tools))
	byName := make(map[string]tool.InvokableTool, len(req.Tools))
	for _, tl := range req.Tools {
		info, err := tl.Info(ctx)
		if err != nil {
			emit(ctx, out, Error{Message: fmt.Sprintf("tool schema unavailable: %v", err)})
			return
		}
		infos = append(infos, info)
		byName[info.Name] = tl
	}

	chatModel := e.chatModel
	if len(infos) > 0 {
		chatModel, err = e.chatModel.WithTools(infos)
		if err != nil {
			emit(ctx, out, Error{Message: fmt.Sprintf("tool binding failed: %v", err)})
			return
		}
	}

	var full strings.Builder
	for step := 1; step <= maxSteps; step++ {
		assistant, err := e.streamStep(ctx, chatModel, msgs, &full, out)
		if err != nil {
			emit(ctx, out, Error{Message: err.Error()})
			return
		}

		if len(assistant.ToolCalls) == 0 {
			emit(ctx, out, StepBoundary{
				FinishReason: finishReason(assistant),
				TextLen:      full.Len(),
			})
			emit(ctx, out, Done{Text: full.String()})
			return
		}

		names := make([]string, 0, len(assistant.ToolCalls))
		for _, call := range assistant.ToolCalls {
			names = append(names, call.Function.Name)
		}
		log.Debug("agent: executing tool calls",
			slog.Int("step", step),
			slog.Any("tools", names),
		)

		// Feed the assistant turn and one result per call, in call order,
		// back into the conversation before the next step. The boundary is
		// emitted after the results exist so it can report their count.
		msgs = append(msgs, assistant)
		for _, call := range assistant.ToolCalls {
			result := invokeTool(ctx, byName, call)
			msgs = append(msgs, schema.ToolMessage(result, call.ID))
		}
		emit(ctx, out, StepBoundary{
			FinishReason: finishReason(assistant),
			ToolCalls:    names,
			ToolResults:  len(assistant.ToolCalls),
			TextLen:      full.Len(),
		})
	}

	emit(ctx, out, Error{Message: "tool step limit reached"})
}

// streamStep runs one model response, forwarding visible text as deltas and
// returning the concatenated assistant message.
func (e *Engine) streamStep(
	ctx context.Context,
	chatModel model.ToolCallingChatModel,
	msgs []*schema.Message,
	full *strings.Builder,
	out chan<- Event,
) (*schema.Message, error) {
	sr, err := chatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model stream receive: %w", err)
		}
		if chunk == nil {
			continue
		}
		if chunk.Content != "" {
			full.WriteString(chunk.Content)
			emit(ctx, out, TextDelta{Text: chunk.Content})
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("model returned an empty stream")
	}
	assistant, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("concat stream chunks: %w", err)
	}
	return assistant, nil
}

// invokeTool runs one tool call and always returns a result string — a
// failed or unknown tool becomes a result the model can react to, never a
// run-level error.
func invokeTool(ctx context.Context, byName map[string]tool.InvokableTool, call schema.ToolCall) string {
	tl, ok := byName[call.Function.Name]
	if !ok {
		return fmt.Sprintf("tool %q is not available", call.Function.Name)
	}
	result, err := tl.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		logging.FromContext(ctx).Warn("agent: tool call failed",
			slog.String("tool", call.Function.Name),
			slog.Any("error", err),
		)
		return fmt.Sprintf("tool %s failed: %v", call.Function.Name, err)
	}
	return result
}

// buildMessages assembles the model input: system prompt, grounding context,
// budget-trimmed prior turns, and the current user message.
func (e *Engine) buildMessages(req *Request) ([]*schema.Message, error) {
	n := len(req.Turns)
	if n == 0 {
		return nil, fmt.Errorf("empty conversation")
	}
	current := req.Turns[n-1]
	if current.Role != history.RoleUser {
		return nil, fmt.Errorf("conversation must end with a user turn")
	}

	head := []*schema.Message{schema.SystemMessage(systemPrompt)}
	if len(req.Passages) > 0 {
		head = append(head, schema.SystemMessage(buildGroundingContext(req.Passages)))
	}

	var prior []*schema.Message
	for _, t := range req.Turns[:n-1] {
		switch t.Role {
		case history.RoleUser:
			prior = append(prior, schema.UserMessage(t.Content))
		case history.RoleAssistant:
			prior = append(prior, schema.AssistantMessage(t.Content, nil))
		}
	}

	fixed := append(append([]*schema.Message{}, head...), schema.UserMessage(current.Content))
	prior = budget.TrimHistory(fixed, prior, e.maxContextTokens)

	result := make([]*schema.Message, 0, len(head)+len(prior)+1)
	result = append(result, head...)
	result = append(result, prior...)
	result = append(result, schema.UserMessage(current.Content))
	return result, nil
}

// buildGroundingContext formats retrieved passages into a system message that
// provides the model with excerpts from the user's documents.
func buildGroundingContext(passages []rag.Passage) string {
	return "## Relevant Document Excerpts\n\n" +
		"The following passages from the user's uploaded documents are relevant " +
		"to their message. Use them to ground your answer and cite the source " +
		"names when you do.\n\n" +
		tools.FormatPassages(passages)
}

// finishReason extracts the model's stop reason, if reported.
func finishReason(m *schema.Message) string {
	if m.ResponseMeta == nil {
		return ""
	}
	return m.ResponseMeta.FinishReason
}

// emit sends ev unless the run context is already cancelled.
func emit(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
