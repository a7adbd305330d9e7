package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/state"
)

func TestCompletedSummarisesServices(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := prescribedState("thanks for the plan")
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Contains(t, s.AssistantResponse, "disease diagnosis")
	assert.Contains(t, s.AssistantResponse, "treatment planning")
	assert.Equal(t, state.ResponseStatusFinal, s.ResponseStatus)
	assert.True(t, s.StreamImmediately)
	assert.False(t, s.IsComplete)
	assert.Empty(t, s.NextAction)
}

func TestCompletedPreservesPendingQuestion(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := newTurnState("check my plant")
	s.RequiresUserInput = true
	s.SetResponse("Please share a photo of the plant.", state.ResponseStatusFinal, false)
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, "Please share a photo of the plant.", s.AssistantResponse)
	assert.True(t, s.StreamImmediately)
}

func TestCompletedFoldsIntermediateAnswer(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := diagnosedState("is it safe to eat the fruit?")
	s.SetResponse("Yes, just wash it thoroughly first.", state.ResponseStatusIntermediate, false)
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Contains(t, s.AssistantResponse, "wash it thoroughly")
	assert.Equal(t, state.ResponseStatusFinal, s.ResponseStatus)
}

func TestCompletedSuggestsNextSteps(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := diagnosedState("ok")
	require.NoError(t, n.Execute(context.Background(), s))

	// A diagnosis without a prescription suggests the treatment plan.
	assert.Contains(t, s.AssistantResponse, "treatment plan")
}

func TestCompletedReportsMissingService(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := newTurnState("diagnose my plant")
	s.UserImage = "base64-image"
	s.UserIntent = (&state.IntentRecord{WantsClassification: true}).Normalize()
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Contains(t, s.AssistantResponse, "couldn't finish")
}

func TestCompletedLeavesOutOfScopeCompletionAlone(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewCompleted(deps)

	s := newTurnState("tell me a joke")
	s.IsComplete = true
	s.SetResponse(OutOfScopeReply(), state.ResponseStatusFinal, true)
	require.NoError(t, n.Execute(context.Background(), s))

	assert.True(t, s.IsComplete)
	assert.NotContains(t, s.AssistantResponse, "Here's what we covered")
}
