package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"ab", 1},
		{"abcd", 1},
		{strings.Repeat("x", 40), 10},
	}
	for _, c := range cases {
		if got := Estimate(c.in); got != c.want {
			t.Errorf("Estimate(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func Test_TrimHistory_FitsUnchanged(t *testing.T) {
	t.Parallel()

	fixed := []*schema.Message{schema.SystemMessage("sys")}
	history := []*schema.Message{
		schema.UserMessage("q1"),
		schema.AssistantMessage("a1", nil),
	}

	got := TrimHistory(fixed, history, 10000)
	if len(got) != 2 {
		t.Errorf("want history untouched, got %d messages", len(got))
	}
}

func Test_TrimHistory_DropsOldestFirst(t *testing.T) {
	t.Parallel()

	fixed := []*schema.Message{schema.SystemMessage("sys")}
	big := strings.Repeat("x", 4000) // ~1000 tokens each
	history := []*schema.Message{
		schema.UserMessage(big),
		schema.AssistantMessage(big, nil),
		schema.UserMessage("recent question"),
		schema.AssistantMessage("recent answer", nil),
	}

	got := TrimHistory(fixed, history, 500)
	if len(got) != 2 {
		t.Fatalf("want 2 surviving messages, got %d", len(got))
	}
	if got[0].Content != "recent question" {
		t.Errorf("oldest messages must be dropped first, got %q", got[0].Content)
	}
}

func Test_TrimHistory_SurvivorsStartWithUser(t *testing.T) {
	t.Parallel()

	fixed := []*schema.Message{schema.SystemMessage("sys")}
	big := strings.Repeat("x", 4000)
	history := []*schema.Message{
		schema.UserMessage(big),
		schema.AssistantMessage("a1", nil),
		schema.UserMessage("q2"),
		schema.AssistantMessage("a2", nil),
	}

	got := TrimHistory(fixed, history, 200)
	if len(got) == 0 {
		return
	}
	if got[0].Role != schema.User {
		t.Errorf("trimmed history must start with a user message, got %s", got[0].Role)
	}
}

func Test_TrimHistory_AllDroppedWhenBudgetTiny(t *testing.T) {
	t.Parallel()

	fixed := []*schema.Message{schema.SystemMessage(strings.Repeat("s", 400))}
	history := []*schema.Message{
		schema.UserMessage(strings.Repeat("x", 400)),
		schema.AssistantMessage(strings.Repeat("y", 400), nil),
	}

	got := TrimHistory(fixed, history, 1)
	if len(got) != 0 {
		t.Errorf("want empty history, got %d messages", len(got))
	}
}
