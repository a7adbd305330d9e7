package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/engine"
	"github.com/sasya-arogya/engine/pkg/engine/nodes"
	"github.com/sasya-arogya/engine/pkg/intent"
	"github.com/sasya-arogya/engine/pkg/session"
	"github.com/sasya-arogya/engine/pkg/stream"
	"github.com/sasya-arogya/engine/pkg/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer backs every external service with the given handlers
// and a memory session store.
func newTestServer(t *testing.T, insurance http.HandlerFunc) *Server {
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
			URL: start(nil), Timeout: time.Second,
		}, nil),
		Prescription: tools.NewPrescriptionTool(config.PrescriptionConfig{
			URL: start(nil), Timeout: time.Second,
		}),
		Insurance: tools.NewInsuranceTool(config.InsuranceConfig{
			URL: start(insurance), Timeout: time.Second, CertificateTimeout: time.Second,
		}),
		Extractor: tools.NewContextExtractor(),
		Overlay:   tools.NewAttentionOverlayTool(),
		Vendors:   tools.NewVendorTool(),
	}

	tracker := stream.NewTracker()
	sessions := session.NewManager(session.NewMemoryStore(), tracker, config.SessionConfig{
		TTL: 24 * time.Hour, CleanupInterval: time.Hour,
	})
	return NewServer(engine.New(deps), sessions, tracker, nil)
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatTurn(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "Premium: ₹4,200 per season."}},
		})
	})
	router := s.Router()

	w := postJSON(t, router, "/sasya/chat", ChatRequest{
		SessionID: "api-1",
		Message:   "What's the insurance premium for 2 hectares of wheat in Punjab?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "api-1", resp.SessionID)
	assert.Equal(t, "completed", resp.CurrentNode)
	assert.False(t, resp.SessionEnded)
	require.NotEmpty(t, resp.Responses)
	assert.Contains(t, resp.Responses[0], "₹4,200")
}

func TestChatAssignsSessionID(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	w := postJSON(t, router, "/sasya/chat", ChatRequest{Message: "hello there"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestChatRequiresMessage(t *testing.T) {
	s := newTestServer(t, nil)
	w := postJSON(t, s.Router(), "/sasya/chat", map[string]any{"session_id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatStreamEmitsSSE(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	w := postJSON(t, router, "/sasya/chat-stream", ChatRequest{
		SessionID: "sse-1",
		Message:   "goodbye",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: state_update")
	assert.Contains(t, body, "event: assistant_response")
	assert.Contains(t, body, "event: done")
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	w := postJSON(t, router, "/sasya/chat", ChatRequest{SessionID: "life-1", Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/sasya/session/life-1", nil)
	get := httptest.NewRecorder()
	router.ServeHTTP(get, req)
	require.Equal(t, http.StatusOK, get.Code)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &stored))
	assert.Equal(t, "life-1", stored["session_id"])
	assert.NotContains(t, stored, "user_image")

	end := postJSON(t, router, "/sasya/session/life-1/end", nil)
	require.Equal(t, http.StatusOK, end.Code)

	get2 := httptest.NewRecorder()
	router.ServeHTTP(get2, httptest.NewRequest(http.MethodGet, "/sasya/session/life-1", nil))
	var after map[string]any
	require.NoError(t, json.Unmarshal(get2.Body.Bytes(), &after))
	assert.Equal(t, true, after["session_ended"])
}

func TestSessionNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	router := s.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sasya/session/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	end := postJSON(t, router, "/sasya/session/missing/end", nil)
	assert.Equal(t, http.StatusNotFound, end.Code)
}

func TestHealthWithMemoryStore(t *testing.T) {
	s := newTestServer(t, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
