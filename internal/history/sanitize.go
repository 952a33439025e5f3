// Package history normalises raw client-supplied message lists into the
// strictly alternating turn sequence the generation engine requires.
// Engines such as Gemini reject conversations whose roles do not alternate
// user/assistant starting with user, so every inbound history passes through
// Sanitize before it reaches the orchestrator.
package history

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn authored by the caller.
	RoleUser Role = "user"
	// RoleAssistant is a turn authored by the generation engine.
	RoleAssistant Role = "assistant"
)

// RawTurn is one entry of an unvalidated client-supplied message list.
// Role may be anything ("system", "tool", garbage); Content may be empty.
type RawTurn struct {
	// Role is the claimed author of the turn.
	Role string `json:"role"`
	// Content is the turn text as supplied by the client.
	Content string `json:"content"`
}

// Turn is one entry of a sanitised conversation: the role is guaranteed to be
// user or assistant and the content is non-empty after trimming.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Content is the non-empty turn text.
	Content string
}

// mergeSeparator joins the contents of consecutive same-role turns.
const mergeSeparator = "\n\n"

// Sanitize reduces raw to a strictly alternating, user-first turn sequence:
//
//  1. turns whose role is neither user nor assistant are dropped;
//  2. turns whose content is empty after whitespace trimming are dropped;
//  3. consecutive same-role turns are merged into one, contents joined by a
//     blank line, original order preserved;
//  4. leading assistant turns (after merging) are dropped so the sequence
//     starts with a user turn;
//  5. if nothing survives, a single synthetic user turn carrying lastQuery is
//     returned so the caller always has something to send to the engine.
//
// Sanitize is deterministic and never fails. Applying it to its own output
// yields the same output.
func Sanitize(raw []RawTurn, lastQuery string) []Turn {
	cleaned := make([]Turn, 0, len(raw))

	for _, m := range raw {
		role := Role(m.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if n := len(cleaned); n > 0 && cleaned[n-1].Role == role {
			cleaned[n-1].Content += mergeSeparator + content
			continue
		}
		cleaned = append(cleaned, Turn{Role: role, Content: content})
	}

	// The engine requires the conversation to open with a user turn.
	for len(cleaned) > 0 && cleaned[0].Role != RoleUser {
		cleaned = cleaned[1:]
	}

	if len(cleaned) == 0 {
		return []Turn{{Role: RoleUser, Content: lastQuery}}
	}
	return cleaned
}

// LastUserQuery returns the content of the most recent user turn in raw, or
// the empty string if none exists. It is used to seed session titles and the
// synthetic fallback turn.
func LastUserQuery(raw []RawTurn) string {
	for i := len(raw) - 1; i >= 0; i-- {
		if Role(raw[i].Role) == RoleUser && strings.TrimSpace(raw[i].Content) != "" {
			return strings.TrimSpace(raw[i].Content)
		}
	}
	return ""
}
