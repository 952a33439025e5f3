package history

import (
	"reflect"
	"testing"
)

func Test_Sanitize_DropsUnknownRolesAndEmptyContent(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{
		{Role: "system", Content: "you are helpful"},
		{Role: "user", Content: "  "},
		{Role: "user", Content: "hello"},
		{Role: "tool", Content: "{}"},
		{Role: "assistant", Content: "hi"},
	}

	got := Sanitize(raw, "hello")
	want := []Turn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_Sanitize_MergesConsecutiveSameRole(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
		{Role: "assistant", Content: "c"},
	}

	got := Sanitize(raw, "a")
	want := []Turn{
		{Role: RoleUser, Content: "a\n\nb"},
		{Role: RoleAssistant, Content: "c"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_Sanitize_DropsLeadingAssistant(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{
		{Role: "assistant", Content: "x"},
		{Role: "user", Content: "y"},
	}

	got := Sanitize(raw, "y")
	want := []Turn{{Role: RoleUser, Content: "y"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_Sanitize_EmptyInputFallsBackToLastQuery(t *testing.T) {
	t.Parallel()

	got := Sanitize(nil, "hello")
	want := []Turn{{Role: RoleUser, Content: "hello"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func Test_Sanitize_AssistantOnlyFallsBack(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{{Role: "assistant", Content: "orphaned reply"}}

	got := Sanitize(raw, "original question")
	want := []Turn{{Role: RoleUser, Content: "original question"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Sanitize must be idempotent: feeding its own output back in (converted to
// raw turns) yields the same sequence.
func Test_Sanitize_Idempotent(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{
		{Role: "assistant", Content: "lead"},
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
		{Role: "assistant", Content: "c"},
		{Role: "assistant", Content: "d"},
		{Role: "user", Content: "e"},
	}

	first := Sanitize(raw, "a")

	again := make([]RawTurn, 0, len(first))
	for _, tn := range first {
		again = append(again, RawTurn{Role: string(tn.Role), Content: tn.Content})
	}
	second := Sanitize(again, "a")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("not idempotent: first %v, second %v", first, second)
	}
}

func Test_Sanitize_AlternationInvariant(t *testing.T) {
	t.Parallel()

	inputs := [][]RawTurn{
		{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Role: "assistant", Content: "c"}, {Role: "user", Content: "d"}, {Role: "user", Content: "e"}},
		{{Role: "assistant", Content: "a"}, {Role: "assistant", Content: "b"}},
		{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		{{Role: "user", Content: "only"}},
	}

	for i, raw := range inputs {
		out := Sanitize(raw, "fallback")
		if len(out) == 0 {
			t.Fatalf("case %d: output must never be empty", i)
		}
		if out[0].Role != RoleUser {
			t.Errorf("case %d: sequence must start with user, got %s", i, out[0].Role)
		}
		for j := 1; j < len(out); j++ {
			if out[j].Role == out[j-1].Role {
				t.Errorf("case %d: roles do not alternate at %d", i, j)
			}
		}
		for j, tn := range out {
			if tn.Content == "" {
				t.Errorf("case %d: empty content at %d", i, j)
			}
		}
	}
}

func Test_LastUserQuery(t *testing.T) {
	t.Parallel()

	raw := []RawTurn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "  second  "},
		{Role: "assistant", Content: "reply 2"},
	}
	if got := LastUserQuery(raw); got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
	if got := LastUserQuery(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
