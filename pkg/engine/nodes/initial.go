package nodes

import (
	"context"
	"log/slog"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Initial is the entry node of every turn. For a continuing conversation
// it short-circuits to followup; for a new one it runs intent analysis,
// extracts context, and dispatches to the first service.
type Initial struct {
	deps   *Deps
	logger *slog.Logger
}

// NewInitial builds the node.
func NewInitial(deps *Deps) *Initial {
	return &Initial{deps: deps, logger: slog.With("node", NameInitial)}
}

func (n *Initial) Name() string { return NameInitial }

func (n *Initial) Execute(ctx context.Context, s *state.WorkflowState) error {
	restarted := s.NextAction == ActionRestart
	s.EnterNode(NameInitial)

	if !restarted && n.isContinuing(s) {
		n.logger.Debug("continuing conversation", "session_id", s.SessionID)
		s.NextAction = ActionFollowup
		return nil
	}

	// Goodbye wins over scope rejection: a farewell carries no
	// agriculture keywords and would otherwise read as off topic.
	if isGoodbye(ctx, n.deps.LLM, s.UserMessage) {
		s.NextAction = ActionSessionEnd
		return nil
	}

	intent := n.deps.Intent.Analyze(ctx, s.UserMessage, s.UserImage != "")
	s.UserIntent = intent

	if intent.OutOfScope {
		if n.deps.Obs != nil {
			n.deps.Obs.OutOfScopeCount.Add(ctx, 1)
		}
		n.logger.Info("out of scope message", "session_id", s.SessionID, "confidence", intent.ScopeConfidence)
		reply := OutOfScopeReply()
		s.AddMessage(state.RoleAssistant, reply)
		s.SetResponse(reply, state.ResponseStatusFinal, true)
		s.IsComplete = true
		s.NextAction = ActionCompleted
		return nil
	}

	extracted := n.deps.Extractor.Extract(s.UserMessage)
	n.deps.Extractor.MergeIntoState(s, extracted)

	switch {
	case intent.WantsClassification && s.UserImage != "":
		ack := "Let me analyze your plant photo."
		if intent.GeneralAnswer != "" {
			ack = intent.GeneralAnswer + "\n\n" + ack
		}
		s.AddMessage(state.RoleAssistant, ack)
		s.SetResponse(ack, state.ResponseStatusIntermediate, false)
		s.NextAction = ActionClassify

	case intent.WantsClassification:
		ask := "I'd be happy to check your plant for diseases. Please share a clear photo of the affected leaves or stems."
		s.AddMessage(state.RoleAssistant, ask)
		s.SetResponse(ask, state.ResponseStatusFinal, true)
		s.RequiresUserInput = true
		s.NextAction = ActionRequestImage

	case intent.WantsAnyInsurance():
		s.NextAction = ActionInsurance

	case intent.IsGeneralQuestion:
		s.NextAction = ActionGeneralHelp

	default:
		s.NextAction = ActionFollowup
	}
	return nil
}

// isContinuing reports whether this session already has history a new
// turn should build on.
func (n *Initial) isContinuing(s *state.WorkflowState) bool {
	if s.SessionEnded {
		return false
	}
	if s.HasResults() || s.HasAssistantMessages() {
		return true
	}
	return s.PreviousNode != "" && s.PreviousNode != NameInitial
}
