package flows

import (
	"fmt"
	"strings"

	"marketpilot/internal/orders"
)

// Outcome reports what a processed message did to the flow.
type Outcome int

const (
	// OutcomeContinue means the flow advanced (or re-prompted) and is still
	// collecting.
	OutcomeContinue Outcome = iota
	// OutcomeCompleted means the buyer confirmed and every field is collected.
	OutcomeCompleted
	// OutcomeFinished means the flow was already done; nothing is sent and
	// nothing changes.
	OutcomeFinished
)

// StepResult is the outcome of feeding one buyer message into a flow.
type StepResult struct {
	State   orders.FlowState
	Reply   string
	Outcome Outcome
}

// Start returns the initial state and the first prompt of a flow. Overrides
// are the matched binding's replacement texts, keyed by step id with an
// optional language suffix; pass nil when the order matched without a binding.
func Start(def FlowDefinition, lang string, overrides map[string]string) (orders.FlowState, string, error) {
	first, ok := def.Step(def.First)
	if !ok {
		return orders.FlowState{}, "", fmt.Errorf("flow %s: missing first step %q", def.ID, def.First)
	}
	state := orders.FlowState{Step: first.ID, Data: map[string]string{}}
	return state, Interpolate(stepPrompt(first, lang, overrides), state.Data), nil
}

// Process applies one buyer message to the stored flow state. It is a pure
// function of its inputs; persistence is the caller's problem. A failed
// validation re-prompts without touching the state, so a crash between reply
// and persist is always safe to retry.
func Process(def FlowDefinition, state orders.FlowState, input, lang string, overrides map[string]string) (StepResult, error) {
	if state.Data == nil {
		state.Data = map[string]string{}
	}

	step, ok := def.Step(state.Step)
	if !ok {
		return StepResult{}, fmt.Errorf("flow %s: unknown step %q", def.ID, state.Step)
	}

	switch step.Kind {
	case StepKindAsk:
		return processAsk(def, step, state, input, lang, overrides)
	case StepKindConfirm:
		return processConfirm(def, step, state, input, lang, overrides)
	case StepKindDone:
		// The flow already finished; stay silent rather than re-trigger.
		return StepResult{State: state, Outcome: OutcomeFinished}, nil
	default:
		return StepResult{}, fmt.Errorf("flow %s: step %q has unknown kind %q", def.ID, step.ID, step.Kind)
	}
}

func processAsk(def FlowDefinition, step Step, state orders.FlowState, input, lang string, overrides map[string]string) (StepResult, error) {
	validate := step.Validate
	if validate == nil {
		validate = NonEmpty
	}

	value, ok := validate(input)
	if !ok {
		return StepResult{
			State:   state,
			Reply:   Interpolate(stepRetry(step, lang, overrides), state.Data),
			Outcome: OutcomeContinue,
		}, nil
	}

	next, ok := def.Step(step.Next)
	if !ok {
		return StepResult{}, fmt.Errorf("flow %s: step %q points to missing step %q", def.ID, step.ID, step.Next)
	}

	data := cloneData(state.Data)
	data[step.Field] = value
	newState := orders.FlowState{Step: next.ID, Data: data}

	return StepResult{
		State:   newState,
		Reply:   Interpolate(stepPrompt(next, lang, overrides), data),
		Outcome: OutcomeContinue,
	}, nil
}

func processConfirm(def FlowDefinition, step Step, state orders.FlowState, input, lang string, overrides map[string]string) (StepResult, error) {
	switch strings.TrimSpace(input) {
	case "+":
		done, ok := def.Step(step.Next)
		if !ok {
			return StepResult{}, fmt.Errorf("flow %s: confirm step %q points to missing step %q", def.ID, step.ID, step.Next)
		}
		return StepResult{
			State:   orders.FlowState{Step: done.ID, Data: cloneData(state.Data)},
			Reply:   Interpolate(stepPrompt(done, lang, overrides), state.Data),
			Outcome: OutcomeCompleted,
		}, nil

	case "-":
		// Restart from scratch; whatever was collected is discarded.
		restarted, reply, err := Start(def, lang, overrides)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{
			State:   restarted,
			Reply:   restartMessage.Resolve(lang) + "\n\n" + reply,
			Outcome: OutcomeContinue,
		}, nil

	default:
		return StepResult{
			State:   state,
			Reply:   Interpolate(stepPrompt(step, lang, overrides), state.Data),
			Outcome: OutcomeContinue,
		}, nil
	}
}

// stepPrompt resolves a step's prompt, preferring the binding's override
// keyed by the step id.
func stepPrompt(step Step, lang string, overrides map[string]string) string {
	if text, ok := overrideText(overrides, step.ID, lang); ok {
		return text
	}
	return step.Prompt.Resolve(lang)
}

// stepRetry resolves a step's failure message: the "<step>_retry" override,
// then the compiled retry pair, then the prompt.
func stepRetry(step Step, lang string, overrides map[string]string) string {
	if text, ok := overrideText(overrides, step.ID+"_retry", lang); ok {
		return text
	}
	if step.Retry.RU == "" && step.Retry.EN == "" {
		return stepPrompt(step, lang, overrides)
	}
	return step.Retry.Resolve(lang)
}

func cloneData(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

var restartMessage = MessagePair{
	RU: "Хорошо, начнём заново.",
	EN: "Alright, let's start over.",
}
