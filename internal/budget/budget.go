// Package budget provides token budget estimation and history trimming for
// the chat orchestrator. Because docsage supports multiple generation
// backends with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English text; using 3 would
	// be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the grounding passages and the response.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message carries a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until the estimated
// token count of fixed + history fits within maxTokens. fixed contains
// messages that must not be trimmed (system context, grounding passages, the
// current user message). history contains prior conversation turns that may
// be dropped oldest-first.
//
// Turns are dropped in pairs where possible so the surviving history still
// starts on a user turn; a lone leading assistant turn would be rejected by
// strict-alternation engines.
//
// Returns the trimmed history slice. Fixed messages are never dropped here —
// callers should warn separately if fixed alone exceeds the budget.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)

	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
		// Keep the sequence user-first after dropping.
		for len(history) > 0 && history[0].Role != schema.User {
			history = history[1:]
		}
	}
	return history
}
