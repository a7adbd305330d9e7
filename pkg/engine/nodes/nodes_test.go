package nodes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/intent"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/tools"
)

// testDeps builds a Deps set with all external services stubbed by the
// given handlers. A nil handler leaves the tool pointing at a closed
// server, which exercises the failure paths.
type testServices struct {
	classifier   http.HandlerFunc
	prescription http.HandlerFunc
	insurance    http.HandlerFunc
}

func newTestDeps(t *testing.T, svc testServices) *Deps {
	t.Helper()

	start := func(h http.HandlerFunc) string {
		srv := httptest.NewServer(h)
		if h == nil {
			srv.Close()
		} else {
			t.Cleanup(srv.Close)
		}
		return srv.URL
	}

	return &Deps{
		Intent: intent.NewAnalyzer(nil),
		Classifier: tools.NewClassificationTool(config.ClassifierConfig{
			URL: start(svc.classifier), Timeout: 2 * time.Second,
		}, nil),
		Prescription: tools.NewPrescriptionTool(config.PrescriptionConfig{
			URL: start(svc.prescription), Timeout: 2 * time.Second,
		}),
		Insurance: tools.NewInsuranceTool(config.InsuranceConfig{
			URL: start(svc.insurance), Timeout: 2 * time.Second, CertificateTimeout: 2 * time.Second,
		}),
		Extractor: tools.NewContextExtractor(),
		Overlay:   tools.NewAttentionOverlayTool(),
		Vendors:   tools.NewVendorTool(),
	}
}

func classifierStub(diseaseName string, confidence float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"disease_name":      diseaseName,
			"confidence":        confidence,
			"severity":          "medium",
			"description":       "Dark concentric spots on lower leaves.",
			"attention_overlay": "overlay-bytes",
		})
	}
}

func insuranceStub(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
		})
	}
}

func newTurnState(message string) *state.WorkflowState {
	s := state.New("test-session")
	s.UserMessage = message
	s.AddMessage(state.RoleUser, message)
	return s
}
