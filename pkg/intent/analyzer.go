// Package intent turns a user message into a structured IntentRecord.
// The primary path asks the LLM for a JSON verdict; a deterministic
// keyword-rule fallback covers LLM failures so routing never blocks on
// an unavailable model.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/state"
)

// Analyzer produces intent records.
type Analyzer struct {
	llmClient *llm.Client
	rules     []Rule
	logger    *slog.Logger
}

// NewAnalyzer builds the analyzer with the default rule set.
func NewAnalyzer(llmClient *llm.Client) *Analyzer {
	return &Analyzer{
		llmClient: llmClient,
		rules:     defaultRules(),
		logger:    slog.With("component", "intent"),
	}
}

// Analyze classifies the message. hasImage biases classification intent
// the same way an attached photo does for a human reader.
func (a *Analyzer) Analyze(ctx context.Context, message string, hasImage bool) *state.IntentRecord {
	if record, err := a.analyzeLLM(ctx, message, hasImage); err == nil {
		return record.Normalize()
	} else {
		a.logger.Warn("LLM intent analysis failed, using keyword fallback", "error", err)
	}
	return a.analyzeKeywords(message, hasImage).Normalize()
}

func (a *Analyzer) analyzeLLM(ctx context.Context, message string, hasImage bool) (*state.IntentRecord, error) {
	if a.llmClient == nil {
		return nil, fmt.Errorf("no LLM client configured")
	}

	raw, err := a.llmClient.GenerateJSON(ctx, buildIntentPrompt(message, hasImage))
	if err != nil {
		return nil, err
	}
	jsonText, ok := llm.ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in intent response")
	}

	var record state.IntentRecord
	if err := json.Unmarshal([]byte(jsonText), &record); err != nil {
		return nil, fmt.Errorf("failed to decode intent JSON: %w", err)
	}
	if record.ScopeConfidence < 0 || record.ScopeConfidence > 1 {
		record.ScopeConfidence = clamp01(record.ScopeConfidence)
	}
	return &record, nil
}

func buildIntentPrompt(message string, hasImage bool) string {
	var b strings.Builder
	b.WriteString(`You are an intent analyzer for an agricultural advisory assistant covering plant disease diagnosis, treatment, and crop insurance.

Analyze the farmer's message and answer with only a JSON object with these fields:
- wants_classification: (boolean) wants disease diagnosis or identification
- wants_prescription: (boolean) wants treatment recommendations
- wants_full_workflow: (boolean) wants the complete process (diagnosis + treatment)
- wants_insurance: (boolean) wants crop insurance services of any kind
- wants_insurance_premium: (boolean) specifically wants a premium or cost calculation
- wants_insurance_companies: (boolean) specifically wants insurance companies or providers
- wants_insurance_recommendation: (boolean) wants an insurance recommendation
- wants_insurance_purchase: (boolean) wants to buy or apply for insurance
- wants_insurance_coverage: (boolean) asks what insurance covers
- is_general_question: (boolean) a general agriculture question with no tool needed
- is_agriculture_related: (boolean) the message is about agriculture at all
- out_of_scope: (boolean) the message is not about agriculture
- scope_confidence: (number 0..1) how confident you are about the scope call
- general_answer: (string) a short answer when is_general_question is true, otherwise ""

Examples:
"Analyze this plant disease" -> {"wants_classification": true, "is_agriculture_related": true, "scope_confidence": 0.95, ...}
"Diagnose and treat my tomato" -> {"wants_full_workflow": true, "is_agriculture_related": true, ...}
"How much is insurance for 5 hectares of rice?" -> {"wants_insurance": true, "wants_insurance_premium": true, ...}
"What's the best smartphone?" -> {"out_of_scope": true, "is_agriculture_related": false, "scope_confidence": 0.2, ...}

`)
	if hasImage {
		b.WriteString("The farmer attached a photo of a plant.\n")
	}
	fmt.Fprintf(&b, "Farmer's message: %q\n", message)
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
