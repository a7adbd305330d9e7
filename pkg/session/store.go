// Package session owns the lifecycle of workflow sessions: loading and
// preparing state for a turn, persisting the outcome, and expiring idle
// sessions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/sasya-arogya/engine/pkg/state"
)

// ErrNotFound is returned when a session does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Store persists workflow state between turns.
type Store interface {
	Load(ctx context.Context, sessionID string) (*state.WorkflowState, error)
	Save(ctx context.Context, s *state.WorkflowState) error
	Delete(ctx context.Context, sessionID string) error
	// DeleteExpired removes sessions not updated since the cutoff and
	// returns their ids.
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error)
}

// DeduplicateMessages collapses adjacent messages with identical role and
// content, keeping the first of each run. It is idempotent and applied on
// load, so historical duplicates from older writers heal over time.
func DeduplicateMessages(messages []state.Message) []state.Message {
	if len(messages) < 2 {
		return messages
	}
	out := messages[:1]
	for _, m := range messages[1:] {
		last := out[len(out)-1]
		if m.Role == last.Role && m.Content == last.Content {
			continue
		}
		out = append(out, m)
	}
	return out
}
