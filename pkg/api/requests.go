package api

// ChatRequest is the body of the chat endpoints. image_b64 carries the
// plant photo; context lets clients pass known facts (plant_type,
// location, season) that override extraction.
type ChatRequest struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message" binding:"required"`
	ImageB64  string            `json:"image_b64"`
	Context   map[string]string `json:"context"`
}

// ChatResponse is the buffered (non-streaming) chat reply.
type ChatResponse struct {
	SessionID         string         `json:"session_id"`
	Responses         []string       `json:"responses"`
	CurrentNode       string         `json:"current_node"`
	IsComplete        bool           `json:"is_complete"`
	SessionEnded      bool           `json:"session_ended"`
	RequiresUserInput bool           `json:"requires_user_input"`
	StateUpdate       map[string]any `json:"state_update,omitempty"`
}
