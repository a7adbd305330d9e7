package nodes

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// Prescribing turns a diagnosis into a treatment plan. The prescription
// engine is advisory: when it is down or returns garbage, rule-based
// defaults keyed on the disease class fill in.
type Prescribing struct {
	deps   *Deps
	logger *slog.Logger
}

// NewPrescribing builds the node.
func NewPrescribing(deps *Deps) *Prescribing {
	return &Prescribing{deps: deps, logger: slog.With("node", NamePrescribing)}
}

func (n *Prescribing) Name() string { return NamePrescribing }

func (n *Prescribing) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NamePrescribing)

	disease := s.DiseaseName
	if disease == "" && s.ClassificationResults != nil {
		disease = s.ClassificationResults.DiseaseName
	}
	if disease == "" {
		// Nothing to prescribe for yet; classification has to run first.
		s.NextAction = ActionClassify
		return nil
	}

	req := tools.PrescriptionRequest{
		DiseaseName: disease,
		PlantType:   s.PlantType,
		Location:    s.Location,
		Season:      s.Season,
		SessionID:   s.SessionID,
	}
	if s.ClassificationResults != nil {
		req.Severity = s.ClassificationResults.Severity
	}

	var prescription *state.Prescription
	if n.deps.Prescription.Available(ctx) {
		p, terr := n.deps.Prescription.Prescribe(ctx, req)
		n.deps.recordTool(ctx, "prescription", terr)
		if terr != nil {
			n.logger.Warn("prescription engine failed, using defaults",
				"session_id", s.SessionID, "error", terr.Message)
			prescription = tools.FallbackPrescription(req)
		} else {
			prescription = p
		}
	} else {
		n.logger.Warn("prescription engine unavailable, using defaults", "session_id", s.SessionID)
		prescription = tools.FallbackPrescription(req)
	}

	s.ClearError()
	s.PrescriptionData = prescription
	s.TreatmentRecommendations = TreatmentSummaries(prescription)

	msg := TreatmentPlanMessage(prescription)
	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)

	if wantsVendors(s.UserMessage) {
		s.NextAction = ActionVendorQuery
	} else {
		s.NextAction = ActionComplete
	}
	return nil
}

var vendorKeywords = []string{"buy", "purchase", "vendor", "supplier", "where can i get", "where to get", "order"}

func wantsVendors(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range vendorKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
