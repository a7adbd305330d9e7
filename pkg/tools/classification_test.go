package tools

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
	"github.com/sasya-arogya/engine/pkg/state"
)

func classifierServer(t *testing.T, resp classifierResponse, status int) *ClassificationTool {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return NewClassificationTool(config.ClassifierConfig{URL: srv.URL, Timeout: 2 * time.Second}, nil)
}

func TestClassifyRequiresImage(t *testing.T) {
	tool := classifierServer(t, classifierResponse{}, http.StatusOK)
	_, terr := tool.Classify(context.Background(), ClassificationRequest{SessionID: "s1"})
	require.NotNil(t, terr)
	assert.Equal(t, KindValidation, terr.Kind)
}

func TestClassifyPrimaryResultWins(t *testing.T) {
	tool := classifierServer(t, classifierResponse{
		DiseaseName:      "early_blight",
		Confidence:       0.92,
		Severity:         "High",
		AttentionOverlay: "b64overlay",
		RawPredictions:   map[string]float64{"early_blight": 0.92},
	}, http.StatusOK)

	result, terr := tool.Classify(context.Background(), ClassificationRequest{
		Image: "aW1n", PlantType: "tomato", SessionID: "s1",
	})
	require.Nil(t, terr)
	assert.Equal(t, "early_blight", result.DiseaseName)
	assert.Equal(t, state.SourceCNN, result.Source)
	assert.Equal(t, "b64overlay", result.AttentionOverlay)
	assert.Equal(t, "tomato", result.PlantContext["plant_type"])
}

func TestClassifyUnknownWithoutSecondaryIsUncertain(t *testing.T) {
	tool := classifierServer(t, classifierResponse{DiseaseName: "unknown", Confidence: 0.1}, http.StatusOK)
	result, terr := tool.Classify(context.Background(), ClassificationRequest{Image: "aW1n", SessionID: "s1"})
	require.Nil(t, terr)
	assert.Equal(t, "uncertain", result.DiseaseName)
	assert.Equal(t, state.SourceCNN, result.Source)
}

func TestClassifyToolErrorPayload(t *testing.T) {
	tool := classifierServer(t, classifierResponse{Error: "model not loaded"}, http.StatusOK)
	_, terr := tool.Classify(context.Background(), ClassificationRequest{Image: "aW1n", SessionID: "s1"})
	require.NotNil(t, terr)
	assert.Equal(t, KindToolError, terr.Kind)
}

func TestClassifyUpstreamDown(t *testing.T) {
	tool := classifierServer(t, classifierResponse{}, http.StatusBadGateway)
	_, terr := tool.Classify(context.Background(), ClassificationRequest{Image: "aW1n", SessionID: "s1"})
	require.NotNil(t, terr)
	assert.Equal(t, KindUpstreamUnavailable, terr.Kind)
}

func TestDiseaseSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"early_blight", "Early Blight", 0.99, 1.0},
		{"tomato early blight", "early blight disease", 0.6, 0.7},
		{"rust", "powdery mildew", 0, 0},
	}
	for _, tt := range tests {
		got := diseaseSimilarity(tt.a, tt.b)
		assert.GreaterOrEqual(t, got, tt.min, "%s vs %s", tt.a, tt.b)
		assert.LessOrEqual(t, got, tt.max, "%s vs %s", tt.a, tt.b)
	}
}
