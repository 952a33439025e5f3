package agent

// Event is one item in the ordered output stream of a generation run.
// A run emits zero or more TextDelta and StepBoundary events followed by
// exactly one terminal event (Done or Error). Nothing follows a terminal
// event.
type Event interface {
	// isEvent restricts implementations to this package.
	isEvent()
}

// TextDelta carries an incremental fragment of visible assistant text, in
// order. Concatenating every TextDelta of a run yields the same string the
// terminal Done event reports.
type TextDelta struct {
	// Text is the fragment. Never empty.
	Text string
}

// StepBoundary marks the end of one engine step: the model finished a
// response and any tools it requested have executed. Either the run continues
// with the results fed back, or the step produced final text (Done follows).
type StepBoundary struct {
	// FinishReason is the model's reported stop reason for this step, if any.
	FinishReason string

	// ToolCalls names the tools the model requested this step, in call order.
	// Empty on the final step.
	ToolCalls []string

	// ToolResults is the number of tool results fed back to the model for
	// this step. Zero on the final step.
	ToolResults int

	// TextLen is the cumulative visible text length after this step.
	TextLen int
}

// Done is the successful terminal event.
type Done struct {
	// Text is the full assistant text of the run, equal to the concatenation
	// of every TextDelta.
	Text string
}

// Error is the failed terminal event. Deltas emitted before it remain valid
// output — consumers that already forwarded them surface the message inline.
type Error struct {
	// Message describes what stopped the run.
	Message string
}

func (TextDelta) isEvent()    {}
func (StepBoundary) isEvent() {}
func (Done) isEvent()         {}
func (Error) isEvent()        {}
