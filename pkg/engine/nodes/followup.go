package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// Followup interprets messages in an ongoing conversation and either
// answers directly or routes to a service node. It also owns the
// re-entry guards that keep already-finished services from re-running.
type Followup struct {
	deps   *Deps
	logger *slog.Logger
}

// NewFollowup builds the node.
func NewFollowup(deps *Deps) *Followup {
	return &Followup{deps: deps, logger: slog.With("node", NameFollowup)}
}

func (n *Followup) Name() string { return NameFollowup }

// Followup actions, produced by analyze.
const (
	followupClassify       = "classify"
	followupPrescribe      = "prescribe"
	followupInsurance      = "insurance"
	followupOverlay        = "attention_overlay"
	followupDosage         = "dosage"
	followupVendors        = "show_vendors"
	followupRestart        = "restart"
	followupOutOfScope     = "out_of_scope"
	followupDirectResponse = "direct_response"
)

func (n *Followup) Execute(ctx context.Context, s *state.WorkflowState) error {
	cameFrom := s.CurrentNode
	s.EnterNode(NameFollowup)

	// A service node already produced the reply and asked for input;
	// pass straight through to completion.
	if s.RequiresUserInput && s.AssistantResponse != "" && cameFrom != NameFollowup {
		s.NextAction = ActionComplete
		return nil
	}

	if isGoodbye(ctx, n.deps.LLM, s.UserMessage) {
		s.NextAction = ActionSessionEnd
		return nil
	}

	// The previous turn ended on the vendor question; a bare yes/no
	// answers it here rather than in the keyword router.
	if awaitingVendorReply(s) {
		if NegativeReply(s.UserMessage) {
			msg := "No problem. Ask me anytime if you'd like supplier options for your treatments."
			s.AddMessage(state.RoleAssistant, msg)
			s.SetResponse(msg, state.ResponseStatusFinal, true)
			s.NextAction = ActionComplete
			return nil
		}
		if AffirmativeReply(s.UserMessage) {
			s.NextAction = ActionShowVendors
			return nil
		}
	}

	extracted := n.deps.Extractor.Extract(s.UserMessage)
	n.deps.Extractor.MergeIntoState(s, extracted)

	action := n.analyze(ctx, s)
	n.logger.Debug("followup action", "session_id", s.SessionID, "action", action)

	switch action {
	case followupClassify:
		return n.handleClassify(ctx, s, cameFrom)
	case followupPrescribe:
		n.handlePrescribe(s, cameFrom)
	case followupInsurance:
		s.NextAction = ActionInsurance
	case followupOverlay:
		n.handleOverlay(s)
	case followupDosage:
		n.handleDosage(ctx, s)
	case followupVendors:
		n.handleVendors(s)
	case followupRestart:
		n.handleRestart(s)
	case followupOutOfScope:
		reply := OutOfScopeReply()
		s.AddMessage(state.RoleAssistant, reply)
		s.SetResponse(reply, state.ResponseStatusFinal, true)
		s.NextAction = ActionComplete
	default:
		n.handleDirect(ctx, s)
	}
	return nil
}

// analyze decides what the user wants next. The LLM choice is preferred;
// keyword tables keep the node working when the LLM is down.
func (n *Followup) analyze(ctx context.Context, s *state.WorkflowState) string {
	if action, ok := n.analyzeLLM(ctx, s); ok {
		return action
	}
	return analyzeKeywords(s)
}

func (n *Followup) analyzeLLM(ctx context.Context, s *state.WorkflowState) (string, bool) {
	if n.deps.LLM == nil {
		return "", false
	}
	raw, err := n.deps.LLM.GenerateJSON(ctx, buildFollowupPrompt(s))
	if err != nil {
		return "", false
	}
	text, ok := llm.ExtractJSON(raw)
	if !ok {
		return "", false
	}
	var out struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return "", false
	}
	switch out.Action {
	case followupClassify, followupPrescribe, followupInsurance, followupOverlay,
		followupDosage, followupVendors, followupRestart, followupOutOfScope,
		followupDirectResponse:
		return out.Action, true
	}
	return "", false
}

func buildFollowupPrompt(s *state.WorkflowState) string {
	var b strings.Builder
	b.WriteString("You route messages in an ongoing crop advisory conversation.\n")
	b.WriteString("Conversation so far (most recent last):\n")
	for _, m := range s.LastUserMessages(3) {
		b.WriteString("- farmer: " + m + "\n")
	}
	fmt.Fprintf(&b, "Session facts: disease=%q, has_prescription=%v, has_image=%v, has_vendor_options=%v\n",
		s.DiseaseName, s.PrescriptionData != nil, s.UserImage != "", len(s.VendorOptions) > 0)
	b.WriteString(`Pick exactly one action for the latest message:
- "classify": diagnose a plant problem (a new photo or disease question)
- "prescribe": treatment or medicine for a diagnosed disease
- "insurance": anything about crop insurance
- "attention_overlay": the farmer asks where the model looked / to see the heatmap
- "dosage": a question about quantity, frequency or application of a prescribed treatment
- "show_vendors": picking or listing suppliers to buy treatments from
- "restart": start the conversation over
- "out_of_scope": unrelated to farming
- "direct_response": any other question you can answer from context
Respond with JSON only: {"action": "<one of the above>"}`)
	return b.String()
}

// analyzeKeywords is the deterministic fallback router.
func analyzeKeywords(s *state.WorkflowState) string {
	lower := strings.ToLower(s.UserMessage)

	switch {
	case containsAny(lower, []string{"start over", "start again", "restart", "new session", "from scratch"}):
		return followupRestart
	case containsAny(lower, []string{"attention", "overlay", "heatmap", "heat map", "where did", "which part", "highlight"}):
		return followupOverlay
	case len(s.VendorOptions) > 0 || containsAny(lower, []string{"vendor", "supplier", "where can i buy", "where to buy"}):
		return followupVendors
	case containsAny(lower, []string{"insurance", "premium", "policy", "insurer", "coverage", "claim"}):
		return followupInsurance
	case s.PrescriptionData != nil && containsAny(lower, []string{"dosage", "dose", "how much", "how often", "how many times", "when should i apply", "how do i apply"}):
		return followupDosage
	case containsAny(lower, []string{"treatment", "medicine", "pesticide", "fungicide", "cure", "spray", "prescription", "remedy"}):
		return followupPrescribe
	case s.UserImage != "" || containsAny(lower, []string{"disease", "diagnose", "what's wrong", "whats wrong", "analyze", "classify", "infected", "check my plant"}):
		return followupClassify
	}
	return followupDirectResponse
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// handleClassify runs classification in place when an image is attached,
// avoiding an extra hop through the classifying node.
func (n *Followup) handleClassify(ctx context.Context, s *state.WorkflowState, cameFrom string) error {
	// Re-entry guard: classifying already ran this turn and produced a
	// result; do not bounce back.
	if cameFrom == NameClassifying && s.ClassificationResults != nil {
		s.NextAction = ActionComplete
		return nil
	}

	if s.UserImage == "" {
		if s.ClassificationResults != nil {
			// Answer from the existing diagnosis instead of asking again.
			report := ClassificationReport(s.ClassificationResults)
			s.AddMessage(state.RoleAssistant, report)
			s.SetResponse(report, state.ResponseStatusFinal, true)
			s.NextAction = ActionComplete
			return nil
		}
		ask := "Please share a clear photo of the affected plant and I'll diagnose it."
		s.AddMessage(state.RoleAssistant, ask)
		s.SetResponse(ask, state.ResponseStatusFinal, true)
		s.RequiresUserInput = true
		s.NextAction = ActionComplete
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
		// Let the dedicated node own the retry loop.
		s.NextAction = ActionClassify
		return nil
	}

	s.ClearError()
	applyClassification(s, result)
	report := ClassificationReport(result)
	s.AddMessage(state.RoleAssistant, report)
	s.SetResponse(report, state.ResponseStatusFinal, true)
	s.NextAction = ActionComplete
	return nil
}

func (n *Followup) handlePrescribe(s *state.WorkflowState, cameFrom string) {
	if cameFrom == NamePrescribing && s.PrescriptionData != nil {
		s.NextAction = ActionComplete
		return
	}
	if s.PrescriptionData != nil && s.UserImage == "" {
		// Replay the existing plan rather than re-prescribing.
		msg := TreatmentPlanMessage(s.PrescriptionData)
		s.AddMessage(state.RoleAssistant, msg)
		s.SetResponse(msg, state.ResponseStatusFinal, true)
		s.NextAction = ActionComplete
		return
	}
	s.NextAction = ActionPrescribe
}

func (n *Followup) handleOverlay(s *state.WorkflowState) {
	requestType := tools.OverlayRequestShow
	if containsAny(strings.ToLower(s.UserMessage), []string{"what is", "explain", "mean"}) {
		requestType = tools.OverlayRequestInfo
	}
	result := n.deps.Overlay.Retrieve(s, requestType)
	if result.Overlay != "" {
		s.AttentionOverlay = result.Overlay
	}
	s.AddMessage(state.RoleAssistant, result.Message)
	s.SetResponse(result.Message, state.ResponseStatusFinal, true)
	s.NextAction = ActionComplete
}

// handleDosage answers quantity and application questions from the
// stored prescription, with an LLM rewrite when available.
func (n *Followup) handleDosage(ctx context.Context, s *state.WorkflowState) {
	p := s.PrescriptionData
	if p == nil || len(p.Treatments) == 0 {
		n.handleDirect(ctx, s)
		return
	}
	var b strings.Builder
	b.WriteString("Here's how to apply the recommended treatments:\n")
	for _, t := range p.Treatments {
		fmt.Fprintf(&b, "\n%s:", t.Name)
		if t.Dosage != "" {
			fmt.Fprintf(&b, " use %s", t.Dosage)
		}
		if t.Frequency != "" {
			fmt.Fprintf(&b, ", %s", t.Frequency)
		}
		if t.Application != "" {
			fmt.Fprintf(&b, ". %s", t.Application)
		}
	}
	answer := b.String()

	if n.deps.LLM != nil {
		prompt := "A farmer asked: \"" + s.UserMessage + "\"\n" +
			"Answer in 2-4 plain sentences using only these facts:\n" + answer
		if rewritten, err := n.deps.LLM.Generate(ctx, prompt); err == nil && strings.TrimSpace(rewritten) != "" {
			answer = strings.TrimSpace(rewritten)
		}
	}

	s.AddMessage(state.RoleAssistant, answer)
	s.SetResponse(answer, state.ResponseStatusIntermediate, false)
	s.NextAction = ActionComplete
}

// awaitingVendorReply reports whether the assistant's last word in the
// log was the vendor confirmation question.
func awaitingVendorReply(s *state.WorkflowState) bool {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == state.RoleAssistant {
			return strings.Contains(s.Messages[i].Content, vendorQuestion)
		}
	}
	return false
}

// handleVendors routes vendor-flow messages: a selection goes to order
// booking, otherwise to the vendor listing.
func (n *Followup) handleVendors(s *state.WorkflowState) {
	if len(s.VendorOptions) > 0 {
		if v := matchVendorSelection(s.UserMessage, s.VendorOptions); v != nil {
			s.SelectedVendor = v
			s.NextAction = ActionOrder
			return
		}
	}
	s.NextAction = ActionShowVendors
}

// matchVendorSelection resolves "1", "the second one", or a vendor name
// against the presented options.
func matchVendorSelection(message string, options []state.Vendor) *state.Vendor {
	lower := strings.ToLower(message)
	for i := range options {
		if strings.Contains(lower, strings.ToLower(options[i].Name)) {
			return &options[i]
		}
	}
	for _, f := range strings.Fields(lower) {
		f = strings.Trim(f, ".,)")
		if idx, err := strconv.Atoi(f); err == nil && idx >= 1 && idx <= len(options) {
			return &options[idx-1]
		}
	}
	ordinals := []string{"first", "second", "third", "fourth", "fifth"}
	for i, o := range ordinals {
		if strings.Contains(lower, o) && i < len(options) {
			return &options[i]
		}
	}
	return nil
}

// handleRestart wipes workflow results and sends the session back to
// the entry node, which treats it as a fresh conversation.
func (n *Followup) handleRestart(s *state.WorkflowState) {
	s.ClassificationResults = nil
	s.PrescriptionData = nil
	s.TreatmentRecommendations = nil
	s.InsurancePremiumDetails = nil
	s.InsuranceRecommendations = nil
	s.InsuranceCompanies = nil
	s.InsuranceCertificate = nil
	s.InsuranceOperationCompleted = false
	s.VendorOptions = nil
	s.SelectedVendor = nil
	s.OrderDetails = ""
	s.DiseaseName = ""
	s.Confidence = 0
	s.UserIntent = nil
	s.AttentionOverlay = ""
	s.ClearError()
	s.NextAction = ActionRestart
}

// handleDirect produces a contextual answer. It is marked intermediate
// so the completion node folds it into the final summary.
func (n *Followup) handleDirect(ctx context.Context, s *state.WorkflowState) {
	answer := ""
	if s.UserIntent != nil && s.UserIntent.GeneralAnswer != "" {
		answer = s.UserIntent.GeneralAnswer
	}
	if answer == "" && n.deps.LLM != nil {
		prompt := buildDirectPrompt(s)
		if text, err := n.deps.LLM.Generate(ctx, prompt); err == nil {
			answer = strings.TrimSpace(text)
		}
	}
	if answer == "" {
		answer = "I can diagnose plant diseases from photos, recommend treatments, and help with crop insurance. What would you like to do?"
	}
	s.AddMessage(state.RoleAssistant, answer)
	s.SetResponse(answer, state.ResponseStatusIntermediate, false)
	s.NextAction = ActionComplete
}

func buildDirectPrompt(s *state.WorkflowState) string {
	var b strings.Builder
	b.WriteString("You are a crop advisory assistant for farmers. Answer briefly and practically.\n")
	if s.DiseaseName != "" {
		fmt.Fprintf(&b, "The farmer's plant was diagnosed with %s.\n", friendlyDiseaseName(s.DiseaseName))
	}
	if s.PlantType != "" {
		fmt.Fprintf(&b, "Crop: %s.\n", s.PlantType)
	}
	if s.Location != "" {
		fmt.Fprintf(&b, "Location: %s.\n", s.Location)
	}
	b.WriteString("Farmer's question: " + s.UserMessage)
	return b.String()
}
