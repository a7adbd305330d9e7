package nodes

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/state"
)

func prescriptionStub() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"treatment": map[string]any{
				"diagnosis": "Early blight caused by Alternaria solani.",
				"medicine_recommendations": map[string]any{
					"primary_treatment":    "Mancozeb 75% WP",
					"organic_alternatives": []string{"Neem oil spray"},
				},
				"prevention": map[string]any{
					"cultural_practices": []string{"Rotate crops every season"},
				},
			},
			"parsing_success": true,
		})
	}
}

func TestPrescribingBuildsTreatmentPlan(t *testing.T) {
	deps := newTestDeps(t, testServices{prescription: prescriptionStub()})
	n := NewPrescribing(deps)

	s := newTurnState("what treatment should I use?")
	s.DiseaseName = "tomato_early_blight"
	require.NoError(t, n.Execute(context.Background(), s))

	require.NotNil(t, s.PrescriptionData)
	assert.False(t, s.PrescriptionData.Fallback)
	assert.Equal(t, "Early blight caused by Alternaria solani.", s.PrescriptionData.Diagnosis)
	require.NotEmpty(t, s.TreatmentRecommendations)
	assert.Contains(t, s.TreatmentRecommendations[0], "Mancozeb")

	assert.Contains(t, s.AssistantResponse, "Mancozeb 75% WP")
	assert.Contains(t, s.AssistantResponse, "Neem oil spray")
	assert.Contains(t, s.AssistantResponse, "Rotate crops every season")
	assert.True(t, s.StreamImmediately)
	assert.Equal(t, ActionComplete, s.NextAction)
}

func TestPrescribingFallsBackWhenEngineDown(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewPrescribing(deps)

	s := newTurnState("give me a treatment plan")
	s.DiseaseName = "tomato_early_blight"
	require.NoError(t, n.Execute(context.Background(), s))

	require.NotNil(t, s.PrescriptionData)
	assert.True(t, s.PrescriptionData.Fallback)
	assert.NotEmpty(t, s.PrescriptionData.Treatments)
	assert.Contains(t, s.AssistantResponse, "general recommendations")
	assert.Equal(t, ActionComplete, s.NextAction)
}

func TestPrescribingWithoutDiagnosisRoutesToClassify(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewPrescribing(deps)

	s := newTurnState("treat my plant")
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionClassify, s.NextAction)
	assert.Nil(t, s.PrescriptionData)
}

func TestPrescribingRoutesToVendorsOnPurchaseAsk(t *testing.T) {
	deps := newTestDeps(t, testServices{prescription: prescriptionStub()})
	n := NewPrescribing(deps)

	s := newTurnState("recommend a treatment and tell me where to buy it")
	s.DiseaseName = "wheat_rust"
	require.NoError(t, n.Execute(context.Background(), s))

	assert.Equal(t, ActionVendorQuery, s.NextAction)
}

func TestPrescribingUsesClassificationSeverity(t *testing.T) {
	deps := newTestDeps(t, testServices{})
	n := NewPrescribing(deps)

	s := newTurnState("treatment please")
	s.ClassificationResults = &state.ClassificationResult{
		DiseaseName: "potato_late_blight",
		Severity:    "high",
	}
	require.NoError(t, n.Execute(context.Background(), s))

	// Disease taken from classification when the flat field is unset.
	require.NotNil(t, s.PrescriptionData)
	assert.Equal(t, "potato_late_blight", s.PrescriptionData.DiseaseName)
}
