package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Error translates the recorded failure into a farmer-readable message
// and terminates the turn.
type Error struct {
	deps   *Deps
	logger *slog.Logger
}

// NewError builds the node.
func NewError(deps *Deps) *Error {
	return &Error{deps: deps, logger: slog.With("node", NameError)}
}

func (n *Error) Name() string { return NameError }

// Error categories, checked in order against the recorded message.
var errorCategories = []struct {
	substrings []string
	reply      string
}{
	{[]string{"insurance", "mcp"},
		"The crop insurance service is temporarily unavailable. Please try your insurance request again in a few minutes."},
	{[]string{"image", "photo"},
		"I had trouble processing your photo. Please try a clear, well-lit picture of the affected plant parts."},
	{[]string{"model", "classif"},
		"The disease detection service is temporarily unavailable. Please try sharing your photo again shortly."},
	{[]string{"llm", "ollama"},
		"My reasoning service is busy right now. Please try again in a moment."},
	{[]string{"timeout", "timed out", "connection", "unreachable", "refused"},
		"I'm having trouble reaching one of my services. Please check back in a few minutes."},
	{[]string{"tool"},
		"One of my support services failed. Please try again shortly."},
}

func (n *Error) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameError)

	n.logger.Error("turn ended in error",
		"session_id", s.SessionID, "error", s.ErrorMessage, "retries", s.RetryCount)

	reply := "Something went wrong on my side. Please try again, and rephrase if the problem persists."
	lower := strings.ToLower(s.ErrorMessage)
	for _, c := range errorCategories {
		if containsAny(lower, c.substrings) {
			reply = c.reply
			break
		}
	}

	s.AddMessage(state.RoleAssistant, reply)
	s.SetResponse(reply, state.ResponseStatusFinal, true)
	s.IsComplete = true
	s.RequiresUserInput = false
	s.NextAction = ""
	return nil
}

// SessionEnd closes the conversation with a context-aware farewell and
// marks the session finished. The next message starts a new workflow.
type SessionEnd struct {
	deps   *Deps
	logger *slog.Logger
}

// NewSessionEnd builds the node.
func NewSessionEnd(deps *Deps) *SessionEnd {
	return &SessionEnd{deps: deps, logger: slog.With("node", NameSessionEnd)}
}

func (n *SessionEnd) Name() string { return NameSessionEnd }

func (n *SessionEnd) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameSessionEnd)

	var b strings.Builder
	b.WriteString("Thank you for using Sasya Arogya!")
	if used := servicesUsed(s); len(used) > 0 {
		fmt.Fprintf(&b, " Today we worked on %s.", strings.Join(used, ", "))
	}
	if s.DiseaseName != "" {
		b.WriteString(" Keep an eye on the treated plants over the next week.")
	}
	b.WriteString(" Wishing you a healthy harvest. Come back any time!")

	msg := b.String()
	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)

	s.SessionEnded = true
	s.IsComplete = true
	s.RequiresUserInput = false
	s.NextAction = ""

	// Bulk transient data has no business outliving the conversation.
	s.UserImage = ""
	s.AttentionOverlay = ""

	n.logger.Info("session ended", "session_id", s.SessionID)
	return nil
}
