package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/state"
)

func TestErrorNodeCategorises(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewError(deps)

	cases := []struct {
		name         string
		errorMessage string
		wantContains string
	}{
		{"insurance outage", "insurance service returned status 503", "insurance service"},
		{"bad image", "failed to decode image payload", "photo"},
		{"classifier down", "classifier model not loaded", "disease detection"},
		{"llm busy", "ollama: connection reset", "reasoning service"},
		{"network", "request timed out after 30s", "reaching one of my services"},
		{"unknown", "something odd happened", "try again"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTurnState("help")
			s.ErrorMessage = tc.errorMessage
			require.NoError(t, n.Execute(context.Background(), s))

			assert.Contains(t, s.AssistantResponse, tc.wantContains)
			assert.True(t, s.IsComplete)
			assert.False(t, s.RequiresUserInput)
			assert.Equal(t, state.ResponseStatusFinal, s.ResponseStatus)
		})
	}
}

func TestSessionEndFarewell(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewSessionEnd(deps)

	s := diagnosedState("bye")
	s.UserImage = "base64-image"
	s.AttentionOverlay = "overlay-bytes"
	require.NoError(t, n.Execute(context.Background(), s))

	assert.True(t, s.SessionEnded)
	assert.True(t, s.IsComplete)
	assert.Contains(t, s.AssistantResponse, "disease diagnosis")
	assert.True(t, s.StreamImmediately)

	// Bulk transients are dropped at session end.
	assert.Empty(t, s.UserImage)
	assert.Empty(t, s.AttentionOverlay)
}
