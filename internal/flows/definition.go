package flows

import "strings"

// Step kinds. Ask steps collect one field, confirm steps show the summary and
// wait for +/-, the done step is the terminal marker.
const (
	StepKindAsk     = "ask"
	StepKindConfirm = "confirm"
	StepKindDone    = "done"
)

// Validator checks and normalizes one buyer answer. It returns the value to
// store and whether the raw input was acceptable.
type Validator func(raw string) (string, bool)

// Step is one node of a flow graph.
type Step struct {
	ID    string
	Kind  string
	Field string // collected data key, ask steps only

	Prompt MessagePair // shown when the step becomes current
	Retry  MessagePair // shown when validation fails; empty means re-send Prompt

	Validate Validator // nil means accept anything non-empty
	Next     string    // id of the following step
}

// FlowDefinition is a complete compiled flow.
type FlowDefinition struct {
	ID    string
	Title string

	// Matching inputs, checked by the matcher in priority order.
	Keywords    []string // exact keyword hit in the lot title
	LotIDs      []int64  // explicit marketplace lot ids
	NamePattern string   // case-insensitive substring of the lot title

	First string
	Steps map[string]Step
}

// Step returns the step with the given id, or the zero step when the stored
// state references something this definition no longer has.
func (d FlowDefinition) Step(id string) (Step, bool) {
	s, ok := d.Steps[id]
	return s, ok
}

// Interpolate substitutes {field} placeholders in prompt text with collected
// values. Unknown placeholders are left as-is.
func Interpolate(text string, data map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	out := text
	for k, v := range data {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
