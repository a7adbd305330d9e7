package nodes

import (
	"context"
	"log/slog"

	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// Classifying runs disease classification on the attached image and
// renders the diagnosis report.
type Classifying struct {
	deps   *Deps
	logger *slog.Logger
}

// NewClassifying builds the node.
func NewClassifying(deps *Deps) *Classifying {
	return &Classifying{deps: deps, logger: slog.With("node", NameClassifying)}
}

func (n *Classifying) Name() string { return NameClassifying }

func (n *Classifying) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameClassifying)

	if s.UserImage == "" {
		s.SetError("no image provided for classification")
		s.NextAction = ActionError
		return nil
	}

	result, terr := n.deps.Classifier.Classify(ctx, tools.ClassificationRequest{
		Image:     s.UserImage,
		PlantType: s.PlantType,
		Location:  s.Location,
		Season:    s.Season,
		SessionID: s.SessionID,
	})
	n.deps.recordTool(ctx, "classification", terr)
	if terr != nil {
		s.SetError(terr.Message)
		if s.CanRetry() {
			n.logger.Warn("classification failed, retrying",
				"session_id", s.SessionID, "attempt", s.RetryCount, "error", terr.Message)
			s.NextAction = ActionRetry
		} else {
			n.logger.Error("classification failed",
				"session_id", s.SessionID, "attempts", s.RetryCount, "error", terr.Message)
			s.NextAction = ActionError
		}
		return nil
	}

	s.ClearError()
	applyClassification(s, result)

	report := ClassificationReport(result)
	s.AddMessage(state.RoleAssistant, report)
	s.SetResponse(report, state.ResponseStatusFinal, true)

	if s.UserIntent != nil && s.UserIntent.WantsPrescription && !result.IsHealthy() {
		s.NextAction = ActionPrescribe
	} else {
		s.NextAction = ActionFollowup
	}
	return nil
}

// applyClassification stores a classification result on the session.
// Shared with the followup node's in-place classification path.
func applyClassification(s *state.WorkflowState, result *state.ClassificationResult) {
	s.ClassificationResults = result
	s.DiseaseName = result.DiseaseName
	s.Confidence = result.Confidence
	s.AttentionOverlay = result.AttentionOverlay
}
