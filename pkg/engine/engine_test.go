package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/intent"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/stream"
	"github.com/sasya-arogya/engine/pkg/tools"
)

type stubServices struct {
	classifier   http.HandlerFunc
	prescription http.HandlerFunc
	insurance    http.HandlerFunc
}

func newTestEngine(t *testing.T, svc stubServices) *Engine {
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

	deps := &nodes.Deps{
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
	return New(deps)
}

func healthyClassifier(diseaseName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"disease_name":      diseaseName,
			"confidence":        0.9,
			"severity":          "medium",
			"attention_overlay": "overlay-bytes",
		})
	}
}

func runTurn(t *testing.T, e *Engine, s *state.WorkflowState) []stream.Event {
	t.Helper()
	var events []stream.Event
	turn := stream.NewTurn(stream.NewTracker(), s, func(ev stream.Event) { events = append(events, ev) })
	require.NoError(t, e.RunTurn(context.Background(), s, turn))
	return events
}

func nodesVisited(events []stream.Event) []string {
	var visited []string
	for _, ev := range events {
		if ev.Type != stream.EventStateUpdate {
			continue
		}
		if node, ok := ev.Data["current_node"].(string); ok {
			if len(visited) == 0 || visited[len(visited)-1] != node {
				visited = append(visited, node)
			}
		}
	}
	return visited
}

func TestTurnClassificationTrace(t *testing.T) {
	e := newTestEngine(t, stubServices{classifier: healthyClassifier("tomato_early_blight")})

	s := state.New("s1")
	s.UserMessage = "What disease does my tomato plant have?"
	s.UserImage = "base64-image"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	assert.Equal(t,
		[]string{"initial", "classifying", "followup", "completed"},
		nodesVisited(events))
	assert.Equal(t, "completed", s.CurrentNode)
	assert.NotNil(t, s.ClassificationResults)
	assert.False(t, s.SessionEnded)

	var overlays, responses int
	for _, ev := range events {
		switch ev.Type {
		case stream.EventAttentionOverlay:
			overlays++
			assert.Equal(t, "overlay-bytes", ev.Data["attention_overlay"])
		case stream.EventAssistantResponse:
			responses++
		}
	}
	assert.Equal(t, 1, overlays)
	// The diagnosis report and the completion summary both stream.
	assert.Equal(t, 2, responses)
}

func TestTurnInsuranceTrace(t *testing.T) {
	e := newTestEngine(t, stubServices{
		insurance: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]any{{"type": "text", "text": "Premium: ₹4,200 per season."}},
			})
		},
	})

	s := state.New("s2")
	s.UserMessage = "What's the insurance premium for 2 hectares of wheat in Punjab?"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	assert.Equal(t, []string{"initial", "insurance", "completed"}, nodesVisited(events))
	assert.NotNil(t, s.InsurancePremiumDetails)
	assert.True(t, s.InsuranceOperationCompleted)
	assert.Empty(t, s.ErrorMessage)
}

func TestTurnVendorConfirmationAcrossTurns(t *testing.T) {
	e := newTestEngine(t, stubServices{})

	// Session as persisted after the prescription turn ended on the
	// supplier question; the next turn is the farmer's answer.
	s := state.New("s8")
	s.CurrentNode = "completed"
	s.PreviousNode = "followup"
	s.DiseaseName = "tomato_early_blight"
	s.PrescriptionData = &state.Prescription{
		DiseaseName: "tomato_early_blight",
		Treatments: []state.Treatment{{
			Name: "Mancozeb 75% WP", Type: "Chemical", Dosage: "2.5 g per liter",
		}},
	}
	s.AddMessage(state.RoleAssistant,
		"Would you like to see local suppliers where you can buy these treatments?")
	s.UserMessage = "yes"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	assert.Contains(t, nodesVisited(events), "show_vendors")
	assert.NotEmpty(t, s.VendorOptions)
	assert.Contains(t, s.AssistantResponse, "suppliers")
}

func TestTurnOutOfScopeTrace(t *testing.T) {
	e := newTestEngine(t, stubServices{})

	s := state.New("s3")
	s.UserMessage = "What is the capital of France?"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	assert.Equal(t, []string{"initial", "completed"}, nodesVisited(events))
	assert.True(t, s.IsComplete)
	assert.False(t, s.SessionEnded)
}

func TestTurnGoodbyeTrace(t *testing.T) {
	e := newTestEngine(t, stubServices{})

	s := state.New("s4")
	s.UserMessage = "goodbye"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	assert.Equal(t, []string{"initial", "session_end"}, nodesVisited(events))
	assert.True(t, s.SessionEnded)
}

func TestTurnClassifierFailureEndsInError(t *testing.T) {
	e := newTestEngine(t, stubServices{
		classifier: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	s := state.New("s5")
	s.UserMessage = "diagnose this plant disease"
	s.UserImage = "base64-image"
	s.AddMessage(state.RoleUser, s.UserMessage)

	events := runTurn(t, e, s)

	visited := nodesVisited(events)
	require.NotEmpty(t, visited)
	assert.Equal(t, "error", visited[len(visited)-1])
	assert.Equal(t, state.MaxRetries, s.RetryCount)
	assert.True(t, s.IsComplete)
	assert.NotEmpty(t, s.AssistantResponse)
}

func TestTurnCancellationStopsBetweenNodes(t *testing.T) {
	e := newTestEngine(t, stubServices{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := state.New("s6")
	s.UserMessage = "hello"
	turn := stream.NewTurn(stream.NewTracker(), s, func(stream.Event) {})

	err := e.RunTurn(ctx, s, turn)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTurnRoutingLoopBounded(t *testing.T) {
	e := newTestEngine(t, stubServices{})
	// A synthetic self-loop: classifying keeps asking to retry.
	e.routes["classifying"] = func(*state.WorkflowState) string { return "classifying" }

	s := state.New("s7")
	s.UserMessage = "diagnose this plant disease"
	s.UserImage = "base64-image"
	turn := stream.NewTurn(stream.NewTracker(), s, func(stream.Event) {})

	err := e.RunTurn(context.Background(), s, turn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}
