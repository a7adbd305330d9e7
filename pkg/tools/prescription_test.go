package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/config"
)

func prescriptionServer(t *testing.T, handler http.HandlerFunc) *PrescriptionTool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPrescriptionTool(config.PrescriptionConfig{URL: srv.URL, Timeout: 2 * time.Second})
}

func TestPrescribeMapsEngineResponse(t *testing.T) {
	tool := prescriptionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query/metrics", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"success": true,
			"treatment": {
				"diagnosis": "Early blight caused by Alternaria solani",
				"medicine_recommendations": {
					"primary_treatment": "Chlorothalonil 75% WP",
					"secondary_treatment": "Mancozeb 75% WP",
					"organic_alternatives": ["Neem oil spray"]
				},
				"prevention": {
					"cultural_practices": ["Rotate crops every season"],
					"crop_management": ["Stake plants for airflow"],
					"environmental_controls": []
				},
				"additional_notes": {"timing": "Spray in the early morning"}
			},
			"parsing_success": true
		}`))
	})

	p, terr := tool.Prescribe(context.Background(), PrescriptionRequest{
		DiseaseName: "early blight", PlantType: "tomato", Severity: "High", SessionID: "s1",
	})
	require.Nil(t, terr)
	require.Len(t, p.Treatments, 3)
	assert.Equal(t, "Chlorothalonil 75% WP", p.Treatments[0].Name)
	assert.Equal(t, "Organic", p.Treatments[2].Type)
	assert.Equal(t, "Chlorothalonil 75% WP", p.ImmediateTreatment)
	assert.Contains(t, p.PreventiveMeasures, "Rotate crops every season")
	assert.Contains(t, p.Notes, "early morning")
	assert.False(t, p.Fallback)
}

func TestPrescribeRequiresDisease(t *testing.T) {
	tool := prescriptionServer(t, func(w http.ResponseWriter, r *http.Request) {})
	_, terr := tool.Prescribe(context.Background(), PrescriptionRequest{SessionID: "s1"})
	require.NotNil(t, terr)
	assert.Equal(t, KindValidation, terr.Kind)
}

func TestPrescribeEngineFailure(t *testing.T) {
	tool := prescriptionServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "collection missing"}`))
	})
	_, terr := tool.Prescribe(context.Background(), PrescriptionRequest{DiseaseName: "rust", SessionID: "s1"})
	require.NotNil(t, terr)
	assert.Equal(t, KindToolError, terr.Kind)
	assert.Contains(t, terr.Message, "collection missing")
}

func TestAvailableProbe(t *testing.T) {
	up := prescriptionServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
	})
	assert.True(t, up.Available(context.Background()))

	down := prescriptionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.False(t, down.Available(context.Background()))
}

func TestFallbackPrescriptionByDiseaseKeyword(t *testing.T) {
	tests := []struct {
		disease string
		first   string
	}{
		{"bacterial wilt", "Copper-based Bactericide"},
		{"late blight", "Copper Sulfate Fungicide"},
		{"fungal rot", "Copper Sulfate Fungicide"},
		{"viral mosaic", "Remove Infected Parts"},
		{"leaf spot", "Broad Spectrum Fungicide"},
	}
	for _, tt := range tests {
		t.Run(tt.disease, func(t *testing.T) {
			p := FallbackPrescription(PrescriptionRequest{DiseaseName: tt.disease})
			require.NotEmpty(t, p.Treatments)
			assert.Equal(t, tt.first, p.Treatments[0].Name)
			assert.True(t, p.Fallback)
			assert.NotEmpty(t, p.PreventiveMeasures)
		})
	}
}
