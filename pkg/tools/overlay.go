package tools

import (
	"fmt"

	"github.com/sasya-arogya/engine/pkg/state"
)

// Overlay request types.
const (
	OverlayRequestShow = "show_overlay"
	OverlayRequestInfo = "overlay_info"
)

// OverlayResult is the outcome of an attention-overlay retrieval.
// Overlay is empty for info-only requests and when no overlay exists.
type OverlayResult struct {
	Overlay     string
	Message     string
	DiseaseName string
	Confidence  float64
}

// AttentionOverlayTool serves user requests to see where the classifier
// focused. It only reads what a previous classification stored in the
// session; it never re-runs classification.
type AttentionOverlayTool struct{}

// NewAttentionOverlayTool returns the tool.
func NewAttentionOverlayTool() *AttentionOverlayTool {
	return &AttentionOverlayTool{}
}

// Retrieve fetches the stored overlay for the session.
func (t *AttentionOverlayTool) Retrieve(s *state.WorkflowState, requestType string) OverlayResult {
	cr := s.ClassificationResults
	if cr == nil {
		return OverlayResult{
			Message: "I haven't classified a plant image in this session yet. Share a photo of your plant and I'll analyze it first.",
		}
	}
	if cr.AttentionOverlay == "" {
		return OverlayResult{
			DiseaseName: cr.DiseaseName,
			Confidence:  cr.Confidence,
			Message: fmt.Sprintf("The analysis of %s (%.0f%% confidence) didn't produce an attention visualization. This can happen when the secondary evaluator made the final call.",
				cr.DiseaseName, cr.Confidence*100),
		}
	}

	if requestType == OverlayRequestInfo {
		return OverlayResult{
			DiseaseName: cr.DiseaseName,
			Confidence:  cr.Confidence,
			Message: fmt.Sprintf("An attention map is available for the %s diagnosis (%.0f%% confidence). It highlights the image regions that drove the classification. Ask me to show it if you'd like to see it.",
				cr.DiseaseName, cr.Confidence*100),
		}
	}

	return OverlayResult{
		Overlay:     cr.AttentionOverlay,
		DiseaseName: cr.DiseaseName,
		Confidence:  cr.Confidence,
		Message: fmt.Sprintf("Here's the attention map from the %s analysis. The highlighted regions are where the model focused when making its diagnosis.",
			cr.DiseaseName),
	}
}
