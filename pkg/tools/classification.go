package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/llm"
	"github.com/sasya-arogya/engine/pkg/state"
)

// unknownDisease is the primary model's label when it cannot classify.
const unknownDisease = "unknown"

// ClassificationRequest is the input to one dual-evaluation run.
type ClassificationRequest struct {
	Image     string
	PlantType string
	Location  string
	Season    string
	SessionID string
}

// ClassificationTool runs the primary CNN classification service and,
// when useful, a secondary vision-LLM evaluation, then reconciles the
// two into one result.
type ClassificationTool struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	llmClient  *llm.Client
}

// NewClassificationTool builds the adapter.
func NewClassificationTool(cfg config.ClassifierConfig, llmClient *llm.Client) *ClassificationTool {
	return &ClassificationTool{
		url:        strings.TrimRight(cfg.URL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		llmClient:  llmClient,
	}
}

type classifierRequest struct {
	Image     string `json:"image"`
	PlantType string `json:"plant_type,omitempty"`
	Location  string `json:"location,omitempty"`
	Season    string `json:"season,omitempty"`
	SessionID string `json:"session_id"`
}

type classifierResponse struct {
	DiseaseName      string             `json:"disease_name"`
	Confidence       float64            `json:"confidence"`
	Severity         string             `json:"severity"`
	Description      string             `json:"description"`
	AttentionOverlay string             `json:"attention_overlay"`
	RawPredictions   map[string]float64 `json:"raw_predictions"`
	Error            string             `json:"error"`
}

type secondaryEvaluation struct {
	DiseaseName string  `json:"disease_name"`
	Confidence  float64 `json:"confidence"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
}

// Classify runs the dual evaluation. The primary result wins unless its
// disease is unknown; then the secondary evaluation is preferred when
// available; otherwise an uncertain result is returned. The secondary
// evaluation never blocks the turn on failure.
func (t *ClassificationTool) Classify(ctx context.Context, req ClassificationRequest) (*state.ClassificationResult, *ToolError) {
	if req.Image == "" {
		return nil, NewToolError(KindValidation, "no image provided for classification")
	}

	primary, terr := t.callPrimary(ctx, req)
	if terr != nil {
		return nil, terr
	}

	details := &state.EvaluationDetails{PrimaryDisease: primary.DiseaseName}
	secondary := t.evaluateSecondary(ctx, req)
	if secondary != nil {
		details.SecondaryAvailable = true
		details.SecondaryDisease = secondary.DiseaseName
		details.Similarity = diseaseSimilarity(primary.DiseaseName, secondary.DiseaseName)
		details.Agreement = details.Similarity >= 0.5
	}

	result := &state.ClassificationResult{
		DiseaseName:       primary.DiseaseName,
		Confidence:        primary.Confidence,
		Severity:          primary.Severity,
		Description:       primary.Description,
		Source:            state.SourceCNN,
		AttentionOverlay:  primary.AttentionOverlay,
		RawPredictions:    primary.RawPredictions,
		EvaluationDetails: details,
		PlantContext: map[string]string{
			"plant_type": req.PlantType,
			"location":   req.Location,
			"season":     req.Season,
		},
	}

	if strings.EqualFold(primary.DiseaseName, unknownDisease) || primary.DiseaseName == "" {
		if secondary != nil && secondary.DiseaseName != "" {
			result.DiseaseName = secondary.DiseaseName
			result.Confidence = secondary.Confidence
			result.Severity = secondary.Severity
			result.Description = secondary.Description
			result.Source = state.SourceSME
		} else {
			result.DiseaseName = "uncertain"
			result.Description = "The condition could not be identified with confidence. A clearer photo of the affected leaves may help."
		}
	}
	return result, nil
}

func (t *ClassificationTool) callPrimary(ctx context.Context, req ClassificationRequest) (*classifierResponse, *ToolError) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(classifierRequest{
		Image:     req.Image,
		PlantType: req.PlantType,
		Location:  req.Location,
		Season:    req.Season,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to encode classifier request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to build classifier request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewToolError(KindUpstreamUnavailable, "classifier returned status %d", resp.StatusCode)
	}

	var out classifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewToolError(KindParseError, "failed to decode classifier response: %v", err)
	}
	if out.Error != "" {
		return nil, NewToolError(KindToolError, "classifier error: %s", out.Error)
	}
	return &out, nil
}

// evaluateSecondary asks the vision LLM for an independent opinion.
// Failures are swallowed; the secondary channel is advisory.
func (t *ClassificationTool) evaluateSecondary(ctx context.Context, req ClassificationRequest) *secondaryEvaluation {
	if t.llmClient == nil {
		return nil
	}
	prompt := buildSecondaryPrompt(req)
	raw, err := t.llmClient.GenerateWithImage(ctx, prompt, req.Image)
	if err != nil {
		return nil
	}
	jsonText, ok := llm.ExtractJSON(raw)
	if !ok {
		return nil
	}
	var eval secondaryEvaluation
	if err := json.Unmarshal([]byte(jsonText), &eval); err != nil {
		return nil
	}
	eval.DiseaseName = strings.TrimSpace(eval.DiseaseName)
	if eval.DiseaseName == "" {
		return nil
	}
	return &eval
}

func buildSecondaryPrompt(req ClassificationRequest) string {
	var b strings.Builder
	b.WriteString("You are a plant pathology expert examining a photo of a plant leaf.\n")
	if req.PlantType != "" {
		fmt.Fprintf(&b, "The plant is reported to be: %s.\n", req.PlantType)
	}
	if req.Season != "" {
		fmt.Fprintf(&b, "Current season: %s.\n", req.Season)
	}
	b.WriteString(`Identify the most likely disease. If the plant looks healthy, use "healthy".
Respond with only a JSON object:
{"disease_name": "...", "confidence": 0.0, "severity": "Low|Medium|High", "description": "one or two sentences"}`)
	return b.String()
}

// diseaseSimilarity measures agreement between two disease labels as
// normalised token overlap, ignoring case, underscores, and filler words.
func diseaseSimilarity(a, b string) float64 {
	ta := diseaseTokens(a)
	tb := diseaseTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}
	common := 0
	for _, tok := range tb {
		if set[tok] {
			common++
		}
	}
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(common) / float64(denom)
}

func diseaseTokens(name string) []string {
	cleaned := strings.ToLower(name)
	cleaned = strings.NewReplacer("_", " ", "-", " ", "(", " ", ")", " ").Replace(cleaned)
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		switch tok {
		case "the", "a", "of", "disease", "leaf":
			continue
		}
		out = append(out, tok)
	}
	return out
}
