package conversation

// StepKind categorises iteration steps.
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAction      StepKind = "action"
	StepObservation StepKind = "observation"
)

// IterationStep is one entry of an agent reasoning trace. Exactly one field
// group is meaningful per kind: Text for thoughts and observations, Tool and
// Input for actions, Success for observations.
type IterationStep struct {
	Kind    StepKind               `json:"kind"`
	Text    string                 `json:"text,omitempty"`
	Tool    string                 `json:"tool,omitempty"`
	Input   map[string]interface{} `json:"input,omitempty"`
	Success bool                   `json:"success,omitempty"`
}

// Iteration is one think → act → observe round. A round is complete once it
// has an observation; the trailing round of a live stream may be incomplete.
type Iteration struct {
	Thought     *IterationStep
	Action      *IterationStep
	Observation *IterationStep
}

// Complete reports whether the round has been terminated by an observation.
func (it Iteration) Complete() bool {
	return it.Observation != nil
}

func (it Iteration) empty() bool {
	return it.Thought == nil && it.Action == nil && it.Observation == nil
}

// Steps flattens the round back into the step order it was built from.
func (it Iteration) Steps() []IterationStep {
	var steps []IterationStep
	if it.Thought != nil {
		steps = append(steps, *it.Thought)
	}
	if it.Action != nil {
		steps = append(steps, *it.Action)
	}
	if it.Observation != nil {
		steps = append(steps, *it.Observation)
	}
	return steps
}

// GroupIterations folds a flat step list into reasoning rounds. It is the
// single grouping rule used both by the live reducer view and when
// rehydrating persisted messages, and it is pure: the same input always
// yields the same rounds.
//
// Rounds are delimited strictly by observations. A thought arriving after an
// observation opens a new round, never rejoins the closed one. Inputs that a
// well-behaved backend never produces (a second thought or action before any
// observation) also force a new round, so every produced round holds at most
// one step of each kind and a thought never follows an action within its
// round.
func GroupIterations(steps []IterationStep) []Iteration {
	var rounds []Iteration
	var cur Iteration

	flush := func() {
		if !cur.empty() {
			rounds = append(rounds, cur)
		}
		cur = Iteration{}
	}

	for i := range steps {
		step := steps[i]
		switch step.Kind {
		case StepThought:
			if cur.Thought != nil || cur.Action != nil {
				flush()
			}
			cur.Thought = &step
		case StepAction:
			if cur.Action != nil {
				flush()
			}
			cur.Action = &step
		case StepObservation:
			cur.Observation = &step
			flush()
		}
	}
	flush()
	return rounds
}

// FlattenIterations is the inverse of GroupIterations for round-tripping.
func FlattenIterations(rounds []Iteration) []IterationStep {
	var steps []IterationStep
	for _, it := range rounds {
		steps = append(steps, it.Steps()...)
	}
	return steps
}

// AssembleIterations rebuilds the iteration view of a persisted message.
// It reproduces exactly what the live reducer showed while the message was
// streaming.
func AssembleIterations(msg Message) []Iteration {
	return GroupIterations(msg.Steps)
}
