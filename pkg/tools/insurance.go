package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/state"
)

// Insurance actions supported by the workflow.
const (
	ActionCalculatePremium    = "calculate_premium"
	ActionGetCompanies        = "get_companies"
	ActionRecommend           = "recommend"
	ActionGenerateCertificate = "generate_certificate"
)

// Upstream tool names on the insurance service.
const (
	toolCalculatePremium    = "calculate_crop_premium"
	toolGetCompanies        = "get_insurance_companies"
	toolRecommendInsurance  = "recommend_insurance"
	toolGenerateCertificate = "generate_insurance_certificate"
)

// InsuranceRequest is the input to one insurance operation.
type InsuranceRequest struct {
	Action      string
	FarmerName  string
	State       string
	AreaHectare float64
	Crop        string
	Disease     string
}

// InsuranceTool calls the crop-insurance service. The service exposes a
// single tool-dispatch endpoint: POST {base}/tools/call with
// {name, arguments}; responses carry a content list of text blocks and
// optional PDF resources.
type InsuranceTool struct {
	url                string
	timeout            time.Duration
	certificateTimeout time.Duration
	httpClient         *http.Client
}

// NewInsuranceTool builds the adapter.
func NewInsuranceTool(cfg config.InsuranceConfig) *InsuranceTool {
	return &InsuranceTool{
		url:                strings.TrimRight(cfg.URL, "/"),
		timeout:            cfg.Timeout,
		certificateTimeout: cfg.CertificateTimeout,
		httpClient:         &http.Client{},
	}
}

type toolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolCallContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name,omitempty"`
}

type toolCallResponse struct {
	Content []toolCallContent `json:"content"`
	IsError bool              `json:"isError"`
}

// Call runs one insurance operation and normalises the response.
func (t *InsuranceTool) Call(ctx context.Context, req InsuranceRequest) (*state.InsuranceResult, *ToolError) {
	name, args, terr := buildToolCall(req)
	if terr != nil {
		return nil, terr
	}

	timeout := t.timeout
	if req.Action == ActionGenerateCertificate {
		// Certificate generation renders a PDF upstream.
		timeout = t.certificateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(toolCallRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to encode insurance request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(KindInternal, "failed to build insurance request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewToolError(KindUpstreamUnavailable, "insurance service returned status %d", resp.StatusCode)
	}

	var out toolCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewToolError(KindParseError, "failed to decode insurance response: %v", err)
	}

	return parseToolCallResponse(req.Action, &out)
}

func buildToolCall(req InsuranceRequest) (string, map[string]any, *ToolError) {
	switch req.Action {
	case ActionCalculatePremium:
		return toolCalculatePremium, map[string]any{
			"crop":         req.Crop,
			"area_hectare": req.AreaHectare,
			"state":        req.State,
		}, nil
	case ActionGetCompanies:
		return toolGetCompanies, map[string]any{
			"state": req.State,
		}, nil
	case ActionRecommend:
		args := map[string]any{
			"farmer_name":  req.FarmerName,
			"state":        req.State,
			"area_hectare": req.AreaHectare,
			"crop":         req.Crop,
		}
		if req.Disease != "" {
			args["disease"] = req.Disease
		}
		return toolRecommendInsurance, args, nil
	case ActionGenerateCertificate:
		args := map[string]any{
			"farmer_name":  req.FarmerName,
			"state":        req.State,
			"area_hectare": req.AreaHectare,
			"crop":         req.Crop,
		}
		if req.Disease != "" {
			args["disease"] = req.Disease
		}
		return toolGenerateCertificate, args, nil
	default:
		return "", nil, NewToolError(KindValidation, "unknown insurance action %q", req.Action)
	}
}

func parseToolCallResponse(action string, out *toolCallResponse) (*state.InsuranceResult, *ToolError) {
	var texts []string
	var pdf *state.PDFResource
	for _, c := range out.Content {
		switch c.Type {
		case "text":
			if c.Text != "" {
				texts = append(texts, c.Text)
			}
		case "resource":
			if strings.EqualFold(c.MimeType, "application/pdf") {
				pdf = &state.PDFResource{URI: c.URI, Name: c.Name, MimeType: c.MimeType}
			}
		}
	}
	text := strings.Join(texts, "\n")

	if out.IsError {
		msg := text
		if msg == "" {
			msg = "insurance operation failed"
		}
		return nil, NewToolError(KindToolError, "%s", msg)
	}
	if text == "" && pdf == nil {
		return nil, NewToolError(KindParseError, "insurance response contained no usable content")
	}

	return &state.InsuranceResult{Action: action, Text: text, PDF: pdf}, nil
}
