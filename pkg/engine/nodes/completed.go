package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Completed assembles the user-visible reply that closes a turn. The
// session stays open for more questions.
type Completed struct {
	deps   *Deps
	logger *slog.Logger
}

// NewCompleted builds the node.
func NewCompleted(deps *Deps) *Completed {
	return &Completed{deps: deps, logger: slog.With("node", NameCompleted)}
}

func (n *Completed) Name() string { return NameCompleted }

func (n *Completed) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameCompleted)
	s.NextAction = ""

	used := servicesUsed(s)

	// A node earlier in the turn already produced the reply: either a
	// question awaiting input or a standalone answer with no service
	// results to summarise. Pass it through untouched.
	if s.AssistantResponse != "" && (s.RequiresUserInput || len(used) == 0) &&
		s.ResponseStatus != state.ResponseStatusIntermediate {
		s.StreamImmediately = true
		s.ResponseStatus = state.ResponseStatusFinal
		return nil
	}

	var b strings.Builder
	if s.AssistantResponse != "" && s.ResponseStatus == state.ResponseStatusIntermediate {
		// Fold the direct answer into the closing message.
		b.WriteString(s.AssistantResponse)
		b.WriteString("\n\n")
	}

	if failed := n.failedServices(s); len(failed) > 0 {
		fmt.Fprintf(&b, "I couldn't finish %s this time. You can try again or rephrase.\n\n", strings.Join(failed, " and "))
	}

	if len(used) > 0 {
		b.WriteString("Here's what we covered: ")
		b.WriteString(strings.Join(used, ", "))
		b.WriteString(".")
	} else if b.Len() == 0 {
		b.WriteString("I'm here to help with your crops.")
	}

	if steps := n.nextSteps(ctx, s, used); len(steps) > 0 {
		b.WriteString("\n\nYou could also:")
		for _, step := range steps {
			b.WriteString("\n- ")
			b.WriteString(step)
		}
	}
	b.WriteString("\n\nAsk me anything else whenever you're ready.")

	msg := b.String()
	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)
	s.IsComplete = false
	return nil
}

// failedServices checks current-turn evidence only: an intent that asked
// for a service which produced no result. The persistent error channel
// is deliberately ignored here.
func (n *Completed) failedServices(s *state.WorkflowState) []string {
	var failed []string
	i := s.UserIntent
	if i == nil {
		return nil
	}
	if i.WantsClassification && s.UserImage != "" && s.ClassificationResults == nil {
		failed = append(failed, "the plant diagnosis")
	}
	if i.WantsPrescription && s.ClassificationResults != nil && s.PrescriptionData == nil {
		failed = append(failed, "the treatment plan")
	}
	if i.WantsAnyInsurance() && !s.InsuranceOperationCompleted && !s.RequiresUserInput {
		failed = append(failed, "the insurance request")
	}
	return failed
}

// nextSteps suggests up to three follow-ups, LLM-phrased when possible.
func (n *Completed) nextSteps(ctx context.Context, s *state.WorkflowState, used []string) []string {
	fallback := n.fallbackSteps(s)
	if n.deps.LLM == nil || len(used) == 0 {
		return fallback
	}

	prompt := fmt.Sprintf(
		"A farmer just used these crop advisory services: %s. Disease found: %q.\n"+
			"Suggest up to 3 short next steps they could take with this assistant "+
			"(diagnosis from photos, treatment plans, crop insurance, finding suppliers).\n"+
			`Respond with JSON only: {"steps": ["...", "..."]}`,
		strings.Join(used, ", "), s.DiseaseName)
	raw, err := n.deps.LLM.GenerateJSON(ctx, prompt)
	if err != nil {
		return fallback
	}
	var out struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out.Steps) == 0 {
		return fallback
	}
	if len(out.Steps) > 3 {
		out.Steps = out.Steps[:3]
	}
	return out.Steps
}

func (n *Completed) fallbackSteps(s *state.WorkflowState) []string {
	var steps []string
	if s.ClassificationResults != nil && s.PrescriptionData == nil && !s.ClassificationResults.IsHealthy() {
		steps = append(steps, "Ask for a treatment plan for the diagnosis")
	}
	if s.PrescriptionData != nil && len(s.VendorOptions) == 0 {
		steps = append(steps, "Find suppliers for the recommended treatments")
	}
	if !s.InsuranceOperationCompleted {
		steps = append(steps, "Check crop insurance options for your farm")
	}
	if len(steps) > 3 {
		steps = steps[:3]
	}
	return steps
}
