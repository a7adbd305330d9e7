package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// insuranceLoopLimit is how many identical consecutive insurance
// messages are tolerated before the node asks the user to rephrase.
const insuranceLoopLimit = 3

// Insurance drives the crop-insurance operations: premium calculation,
// company listing, recommendation, and certificate generation.
type Insurance struct {
	deps   *Deps
	logger *slog.Logger
}

// NewInsurance builds the node.
func NewInsurance(deps *Deps) *Insurance {
	return &Insurance{deps: deps, logger: slog.With("node", NameInsurance)}
}

func (n *Insurance) Name() string { return NameInsurance }

func (n *Insurance) Execute(ctx context.Context, s *state.WorkflowState) error {
	s.EnterNode(NameInsurance)

	if n.loopDetected(s) {
		msg := "We seem to be going in circles on insurance. Could you rephrase what you need? " +
			"For example: \"calculate premium for 2 hectares of wheat in Punjab\" or \"recommend insurance for my rice crop\"."
		s.LastInsuranceMessage = ""
		s.InsuranceActionCount = 0
		s.AddMessage(state.RoleAssistant, msg)
		s.SetResponse(msg, state.ResponseStatusFinal, true)
		s.RequiresUserInput = true
		s.NextAction = ActionFollowup
		return nil
	}

	extracted := n.deps.Extractor.Extract(s.UserMessage)
	n.deps.Extractor.MergeIntoState(s, extracted)

	if missing := missingInsuranceFields(s); len(missing) > 0 {
		msg := "To help with crop insurance I still need: " + strings.Join(missing, ", ") + ". " +
			"For example: \"I grow wheat on 5 acres in Punjab\"."
		s.AddMessage(state.RoleAssistant, msg)
		s.SetResponse(msg, state.ResponseStatusFinal, true)
		s.RequiresUserInput = true
		s.NextAction = ActionFollowup
		return nil
	}

	action := n.chooseAction(ctx, s)
	n.logger.Info("insurance action selected",
		"session_id", s.SessionID, "action", action, "state", s.State, "crop", s.Crop)

	req := tools.InsuranceRequest{
		Action:      action,
		FarmerName:  s.FarmerName,
		State:       s.State,
		AreaHectare: s.AreaHectare,
		Crop:        s.Crop,
		Disease:     s.DiseaseName,
	}
	if req.FarmerName == "" {
		req.FarmerName = "Farmer"
	}

	var result *state.InsuranceResult
	for {
		r, terr := n.deps.Insurance.Call(ctx, req)
		n.deps.recordTool(ctx, "insurance", terr)
		if terr == nil {
			result = r
			break
		}
		s.SetError(terr.Message)
		if !s.CanRetry() {
			n.logger.Error("insurance call failed",
				"session_id", s.SessionID, "action", action, "attempts", s.RetryCount, "error", terr.Message)
			s.NextAction = ActionError
			return nil
		}
		n.logger.Warn("insurance call failed, retrying",
			"session_id", s.SessionID, "action", action, "attempt", s.RetryCount, "error", terr.Message)
	}

	s.ClearError()
	n.storeResult(s, action, result)
	s.InsuranceOperationCompleted = true

	msg := insuranceMessage(action, result)
	s.AddMessage(state.RoleAssistant, msg)
	s.SetResponse(msg, state.ResponseStatusFinal, true)
	s.NextAction = ActionCompleted
	return nil
}

// loopDetected tracks consecutive identical insurance messages.
func (n *Insurance) loopDetected(s *state.WorkflowState) bool {
	if s.UserMessage == s.LastInsuranceMessage {
		s.InsuranceActionCount++
	} else {
		s.LastInsuranceMessage = s.UserMessage
		s.InsuranceActionCount = 1
	}
	return s.InsuranceActionCount >= insuranceLoopLimit
}

func missingInsuranceFields(s *state.WorkflowState) []string {
	var missing []string
	if s.State == "" {
		missing = append(missing, "your state")
	}
	if s.AreaHectare <= 0 {
		missing = append(missing, "your farm area")
	}
	if s.Crop == "" {
		missing = append(missing, "the crop you grow")
	}
	return missing
}

// Keyword ladders for action selection. Order matters: purchase beats
// cost beats help beats companies beats recommendation.
var (
	strongPurchasePhrases = []string{
		"buy insurance", "purchase insurance", "i want insurance",
		"apply for insurance", "get me insurance", "generate certificate",
		"insurance certificate", "buy the policy", "purchase the policy",
	}
	purchaseWords  = []string{"buy", "purchase", "apply"}
	costWords      = []string{"how much", "cost", "premium", "price", "rate"}
	helpWords      = []string{"help me", "assist", "guide me", "what should i do", "confused"}
	companiesWords = []string{"companies", "company", "insurer", "provider", "which firms", "list"}
	recommendWords = []string{"recommend", "suggest", "which insurance", "best insurance", "advise", "help me choose"}
)

// chooseAction picks the upstream operation. Explicit intent flags win,
// then an LLM disambiguation of the raw message, then the keyword
// ladder; a known disease biases toward a recommendation.
func (n *Insurance) chooseAction(ctx context.Context, s *state.WorkflowState) string {
	if i := s.UserIntent; i != nil {
		switch {
		case i.WantsInsurancePurchase:
			return tools.ActionGenerateCertificate
		case i.WantsInsurancePremium:
			return tools.ActionCalculatePremium
		case i.WantsInsuranceCompanies:
			return tools.ActionGetCompanies
		case i.WantsInsuranceRecommendation || i.WantsInsuranceCoverage:
			return tools.ActionRecommend
		}
	}

	if action, ok := n.disambiguate(ctx, s.UserMessage); ok {
		return action
	}
	return keywordAction(s)
}

// disambiguate asks the LLM which insurance operation the message wants.
// Any failure falls through to the keyword ladder.
func (n *Insurance) disambiguate(ctx context.Context, message string) (string, bool) {
	if n.deps.LLM == nil {
		return "", false
	}
	raw, err := n.deps.LLM.GenerateJSON(ctx, buildInsuranceActionPrompt(message))
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
	case tools.ActionCalculatePremium, tools.ActionGetCompanies,
		tools.ActionRecommend, tools.ActionGenerateCertificate:
		return out.Action, true
	}
	return "", false
}

func buildInsuranceActionPrompt(message string) string {
	return `A farmer asked about crop insurance. Pick the single operation they want.

Message: "` + message + `"

Operations with examples:
- "calculate_premium": "How much will insurance cost for my crops?", "What is the premium for my potato farm?", "Show me premium rates"
- "generate_certificate": "Help me apply for crop insurance", "I want to purchase insurance", "Buy crop insurance for me", "Generate insurance certificate"
- "get_companies": "Which insurance companies are available?", "Show me insurance providers", "List insurers in my state"
- "recommend": "Recommend the best insurance for my crops", "Which insurance should I choose?", "What does insurance cover?"

Rules: apply/buy means generate_certificate; cost/premium means calculate_premium; when a message mixes cost and purchase terms, pick the main intent.
Respond with JSON only: {"action": "<one of calculate_premium, generate_certificate, get_companies, recommend>"}`
}

func keywordAction(s *state.WorkflowState) string {
	lower := strings.ToLower(s.UserMessage)
	for _, p := range strongPurchasePhrases {
		if strings.Contains(lower, p) {
			return tools.ActionGenerateCertificate
		}
	}
	if strings.Contains(lower, "insurance") || strings.Contains(lower, "policy") {
		for _, w := range purchaseWords {
			if strings.Contains(lower, w) {
				return tools.ActionGenerateCertificate
			}
		}
	}
	for _, w := range costWords {
		if strings.Contains(lower, w) {
			return tools.ActionCalculatePremium
		}
	}
	for _, w := range helpWords {
		if strings.Contains(lower, w) {
			return tools.ActionRecommend
		}
	}
	for _, w := range companiesWords {
		if strings.Contains(lower, w) {
			return tools.ActionGetCompanies
		}
	}
	for _, w := range recommendWords {
		if strings.Contains(lower, w) {
			return tools.ActionRecommend
		}
	}
	if s.DiseaseName != "" {
		return tools.ActionRecommend
	}
	return tools.ActionCalculatePremium
}

func (n *Insurance) storeResult(s *state.WorkflowState, action string, result *state.InsuranceResult) {
	switch action {
	case tools.ActionCalculatePremium:
		s.InsurancePremiumDetails = result
	case tools.ActionGetCompanies:
		s.InsuranceCompanies = result
	case tools.ActionRecommend:
		s.InsuranceRecommendations = result
	case tools.ActionGenerateCertificate:
		s.InsuranceCertificate = result
	}
}

func insuranceMessage(action string, result *state.InsuranceResult) string {
	msg := result.Text
	if msg == "" {
		msg = "Your insurance request has been processed."
	}
	if action == tools.ActionGenerateCertificate && result.PDF != nil {
		msg += fmt.Sprintf("\n\nYour insurance certificate is ready: %s", result.PDF.Name)
	}
	return msg
}
