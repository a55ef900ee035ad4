package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func thought(text string) IterationStep {
	return IterationStep{Kind: StepThought, Text: text}
}

func action(tool string) IterationStep {
	return IterationStep{Kind: StepAction, Tool: tool}
}

func observation(text string, success bool) IterationStep {
	return IterationStep{Kind: StepObservation, Text: text, Success: success}
}

func TestGroupIterations_SingleRound(t *testing.T) {
	rounds := GroupIterations([]IterationStep{
		thought("checking"),
		action("calc"),
		observation("4", true),
	})

	require.Len(t, rounds, 1)
	assert.True(t, rounds[0].Complete())
	assert.Equal(t, "checking", rounds[0].Thought.Text)
	assert.Equal(t, "calc", rounds[0].Action.Tool)
	assert.Equal(t, "4", rounds[0].Observation.Text)
	assert.True(t, rounds[0].Observation.Success)
}

func TestGroupIterations_TrailingRoundIncomplete(t *testing.T) {
	rounds := GroupIterations([]IterationStep{
		thought("first"),
		action("search"),
		observation("hit", true),
		thought("second"),
	})

	require.Len(t, rounds, 2)
	assert.True(t, rounds[0].Complete())
	assert.False(t, rounds[1].Complete())
	assert.Equal(t, "second", rounds[1].Thought.Text)
}

// A thought after an observation opens a new round; it never rejoins the
// closed one.
func TestGroupIterations_ObservationDelimits(t *testing.T) {
	rounds := GroupIterations([]IterationStep{
		action("search"),
		observation("hit", true),
		thought("next"),
		action("calc"),
		observation("4", true),
	})

	require.Len(t, rounds, 2)
	assert.Nil(t, rounds[0].Thought)
	assert.Equal(t, "search", rounds[0].Action.Tool)
	assert.Equal(t, "next", rounds[1].Thought.Text)
	assert.Equal(t, "calc", rounds[1].Action.Tool)
}

// Every produced round holds at most one step of each kind, and a thought
// never follows an action within a round, whatever the input order.
func TestGroupIterations_InvariantHoldsForHostileInputs(t *testing.T) {
	inputs := [][]IterationStep{
		{thought("a"), thought("b")},
		{action("x"), thought("late")},
		{action("x"), action("y"), observation("o", false)},
		{observation("only", true)},
		{thought("a"), action("x"), thought("b"), action("y"), observation("o", true)},
	}

	for _, steps := range inputs {
		for _, round := range GroupIterations(steps) {
			count := 0
			if round.Thought != nil {
				count++
			}
			if round.Action != nil {
				count++
			}
			if round.Observation != nil {
				count++
			}
			assert.Greater(t, count, 0)

			// A round's flattened steps keep thought before action.
			flat := round.Steps()
			for i := 1; i < len(flat); i++ {
				if flat[i].Kind == StepThought {
					assert.NotEqual(t, StepAction, flat[i-1].Kind,
						"thought must not follow action within a round: %#v", flat)
				}
			}
		}
	}
}

// Assembling a message's stored steps is idempotent: regrouping the
// flattened rounds yields the same rounds.
func TestAssembleIterations_Idempotent(t *testing.T) {
	msg := Message{Steps: []IterationStep{
		thought("a"),
		action("search"),
		observation("result", true),
		thought("b"),
		action("calc"),
		observation("4", true),
		thought("tail"),
	}}

	once := AssembleIterations(msg)
	again := GroupIterations(FlattenIterations(once))
	assert.Equal(t, once, again)
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "New conversation", DefaultTitle("  "))
	assert.Equal(t, "hello", DefaultTitle("hello"))

	long := "what does the attention mechanism in transformers actually compute"
	title := DefaultTitle(long)
	assert.Less(t, len(title), len(long))
	assert.Contains(t, title, "…")
}
