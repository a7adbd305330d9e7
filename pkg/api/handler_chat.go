package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sasya-arogya/engine/pkg/session"
	"github.com/sasya-arogya/engine/pkg/stream"
)

// chatStream handles POST /sasya/chat-stream. Events are sent as SSE
// messages, one per engine event, closed by a done event.
func (s *Server) chatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	state, err := s.sessions.BeginTurn(c.Request.Context(), session.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Image:     req.ImageB64,
		Context:   req.Context,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	turn := stream.NewTurn(s.tracker, state, func(ev stream.Event) {
		writeSSE(c, ev)
	})

	if err := s.engine.RunTurn(c.Request.Context(), state, turn); err != nil {
		// Client gone: stop silently, nothing is persisted. A fatal
		// engine error is reported but also not persisted.
		if c.Request.Context().Err() == nil {
			writeSSE(c, stream.ErrorEvent(state.SessionID, err.Error()))
			writeSSEDone(c)
		}
		return
	}

	if err := s.sessions.CompleteTurn(c.Request.Context(), state); err != nil {
		s.logger.Error("failed to persist session", "session_id", state.SessionID, "error", err)
		writeSSE(c, stream.ErrorEvent(state.SessionID, "failed to persist session state"))
	}
	writeSSEDone(c)
}

// chat handles POST /sasya/chat: same turn, responses buffered.
func (s *Server) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	unlock := s.sessions.Lock(req.SessionID)
	defer unlock()

	state, err := s.sessions.BeginTurn(c.Request.Context(), session.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Image:     req.ImageB64,
		Context:   req.Context,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := ChatResponse{SessionID: state.SessionID, StateUpdate: map[string]any{}}
	turn := stream.NewTurn(s.tracker, state, func(ev stream.Event) {
		switch ev.Type {
		case stream.EventAssistantResponse:
			if text, ok := ev.Data["assistant_response"].(string); ok {
				resp.Responses = append(resp.Responses, text)
			}
		case stream.EventStateUpdate:
			for k, v := range ev.Data {
				resp.StateUpdate[k] = v
			}
		}
	})

	if err := s.engine.RunTurn(c.Request.Context(), state, turn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "session_id": state.SessionID})
		return
	}
	if err := s.sessions.CompleteTurn(c.Request.Context(), state); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session state"})
		return
	}

	resp.CurrentNode = state.CurrentNode
	resp.IsComplete = state.IsComplete
	resp.SessionEnded = state.SessionEnded
	resp.RequiresUserInput = state.RequiresUserInput
	c.JSON(http.StatusOK, resp)
}

func writeSSE(c *gin.Context, ev stream.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, payload)
	c.Writer.Flush()
}

func writeSSEDone(c *gin.Context) {
	fmt.Fprint(c.Writer, "event: done\ndata: {}\n\n")
	c.Writer.Flush()
}
