// Package state defines the per-session workflow state and its mutation
// helpers. A single WorkflowState owns everything one conversation turn
// reads and writes; nodes mutate it serially within a turn.
package state

import (
	"time"
)

// Response status values set by nodes and consumed by the streaming layer.
const (
	ResponseStatusIntermediate = "intermediate"
	ResponseStatusFinal        = "final"
	ResponseStatusStateOnly    = "state_only"
)

// MaxRetries bounds per-node retry loops before the error path is taken.
const MaxRetries = 2

// recentWindow is how far back AddMessage looks for duplicates.
const recentWindow = 5

// Message is one entry in the conversation log. Ordering is insertion
// order and must remain stable across persistence round trips.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Node      string    `json:"node,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// WorkflowState is the full per-session record. UserImage and
// AttentionOverlay are transient: they are never included in state_update
// deltas and AttentionOverlay is never persisted.
type WorkflowState struct {
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdateTime time.Time `json:"last_update_time"`

	// Turn inputs.
	UserMessage string            `json:"user_message,omitempty"`
	UserImage   string            `json:"-"`
	UserContext map[string]string `json:"user_context,omitempty"`

	// Extracted context.
	PlantType   string  `json:"plant_type,omitempty"`
	Location    string  `json:"location,omitempty"`
	Season      string  `json:"season,omitempty"`
	GrowthStage string  `json:"growth_stage,omitempty"`
	FarmerName  string  `json:"farmer_name,omitempty"`
	Crop        string  `json:"crop,omitempty"`
	State       string  `json:"state,omitempty"`
	AreaHectare float64 `json:"area_hectare,omitempty"`

	Messages []Message `json:"messages"`

	// Routing.
	CurrentNode       string `json:"current_node,omitempty"`
	PreviousNode      string `json:"previous_node,omitempty"`
	NextAction        string `json:"next_action,omitempty"`
	RequiresUserInput bool   `json:"requires_user_input,omitempty"`
	IsComplete        bool   `json:"is_complete,omitempty"`
	SessionEnded      bool   `json:"session_ended,omitempty"`

	UserIntent *IntentRecord `json:"user_intent,omitempty"`

	// Classification results.
	ClassificationResults *ClassificationResult `json:"classification_results,omitempty"`
	DiseaseName           string                `json:"disease_name,omitempty"`
	Confidence            float64               `json:"confidence,omitempty"`

	// Prescription results.
	PrescriptionData         *Prescription `json:"prescription_data,omitempty"`
	TreatmentRecommendations []string      `json:"treatment_recommendations,omitempty"`

	// Insurance results.
	InsuranceContext            map[string]string `json:"insurance_context,omitempty"`
	InsurancePremiumDetails     *InsuranceResult  `json:"insurance_premium_details,omitempty"`
	InsuranceRecommendations    *InsuranceResult  `json:"insurance_recommendations,omitempty"`
	InsuranceCompanies          *InsuranceResult  `json:"insurance_companies,omitempty"`
	InsuranceCertificate        *InsuranceResult  `json:"insurance_certificate,omitempty"`
	InsuranceOperationCompleted bool              `json:"insurance_operation_completed,omitempty"`

	// Vendor flow (optional extension).
	VendorOptions  []Vendor `json:"vendor_options,omitempty"`
	SelectedVendor *Vendor  `json:"selected_vendor,omitempty"`
	OrderDetails   string   `json:"order_details,omitempty"`

	// Streaming metadata, set by the node that produced AssistantResponse.
	AssistantResponse   string `json:"assistant_response,omitempty"`
	ResponseStatus      string `json:"response_status,omitempty"`
	StreamImmediately   bool   `json:"stream_immediately,omitempty"`
	StreamInStateUpdate bool   `json:"stream_in_state_update,omitempty"`

	// Error control.
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count,omitempty"`

	// Insurance loop guard.
	LastInsuranceMessage string `json:"last_insurance_message,omitempty"`
	InsuranceActionCount int    `json:"insurance_action_count,omitempty"`

	AttentionOverlay string `json:"-"`
}

// New returns a blank state for a fresh session.
func New(sessionID string) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		SessionID:      sessionID,
		CreatedAt:      now,
		LastUpdateTime: now,
		UserContext:    map[string]string{},
		Messages:       []Message{},
	}
}

// AddMessage appends to the conversation log unless an identical
// (role, content) pair already appears within the last few entries.
func (s *WorkflowState) AddMessage(role, content string) {
	start := len(s.Messages) - recentWindow
	if start < 0 {
		start = 0
	}
	for _, m := range s.Messages[start:] {
		if m.Role == role && m.Content == content {
			return
		}
	}
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Node:      s.CurrentNode,
	})
	s.Touch()
}

// SetError records an error and bumps the retry counter.
func (s *WorkflowState) SetError(msg string) {
	s.ErrorMessage = msg
	s.RetryCount++
	s.Touch()
}

// ClearError resets the error channel. Nodes call this when a later
// operation in the same turn succeeds, so stale failures never reach the
// completion summary.
func (s *WorkflowState) ClearError() {
	s.ErrorMessage = ""
	s.RetryCount = 0
}

// CanRetry reports whether another retry attempt is allowed.
func (s *WorkflowState) CanRetry() bool {
	return s.RetryCount < MaxRetries
}

// SetResponse sets the assistant response together with its streaming
// metadata in one step.
func (s *WorkflowState) SetResponse(text, status string, immediately bool) {
	s.AssistantResponse = text
	s.ResponseStatus = status
	s.StreamImmediately = immediately
}

// EnterNode records the node transition bookkeeping every handler performs
// on entry.
func (s *WorkflowState) EnterNode(name string) {
	if s.CurrentNode != "" && s.CurrentNode != name {
		s.PreviousNode = s.CurrentNode
	}
	s.CurrentNode = name
	s.Touch()
}

// Touch updates the last-modified timestamp.
func (s *WorkflowState) Touch() {
	s.LastUpdateTime = time.Now().UTC()
}

// ContextValue looks up a key in the API-supplied context.
func (s *WorkflowState) ContextValue(key string) string {
	if s.UserContext == nil {
		return ""
	}
	return s.UserContext[key]
}

// HasResults reports whether any workflow step has produced output. Used
// by the continuing-conversation detector.
func (s *WorkflowState) HasResults() bool {
	return s.ClassificationResults != nil ||
		s.PrescriptionData != nil ||
		s.InsurancePremiumDetails != nil ||
		s.InsuranceRecommendations != nil ||
		s.InsuranceCompanies != nil ||
		s.InsuranceCertificate != nil
}

// HasAssistantMessages reports whether the assistant has spoken before in
// this conversation.
func (s *WorkflowState) HasAssistantMessages() bool {
	for _, m := range s.Messages {
		if m.Role == RoleAssistant {
			return true
		}
	}
	return false
}

// LastUserMessages returns up to n most recent user messages, newest last.
func (s *WorkflowState) LastUserMessages(n int) []string {
	var out []string
	for i := len(s.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if s.Messages[i].Role == RoleUser {
			out = append(out, s.Messages[i].Content)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Clone returns a deep copy. The engine hands clones to the streaming
// layer so later node mutations cannot race with delta computation.
func (s *WorkflowState) Clone() *WorkflowState {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.TreatmentRecommendations = append([]string(nil), s.TreatmentRecommendations...)
	c.VendorOptions = append([]Vendor(nil), s.VendorOptions...)
	if s.UserContext != nil {
		c.UserContext = make(map[string]string, len(s.UserContext))
		for k, v := range s.UserContext {
			c.UserContext[k] = v
		}
	}
	if s.InsuranceContext != nil {
		c.InsuranceContext = make(map[string]string, len(s.InsuranceContext))
		for k, v := range s.InsuranceContext {
			c.InsuranceContext[k] = v
		}
	}
	if s.UserIntent != nil {
		ic := *s.UserIntent
		c.UserIntent = &ic
	}
	if s.ClassificationResults != nil {
		cc := s.ClassificationResults.clone()
		c.ClassificationResults = cc
	}
	if s.PrescriptionData != nil {
		pc := s.PrescriptionData.clone()
		c.PrescriptionData = pc
	}
	if s.SelectedVendor != nil {
		v := *s.SelectedVendor
		c.SelectedVendor = &v
	}
	c.InsurancePremiumDetails = s.InsurancePremiumDetails.clone()
	c.InsuranceRecommendations = s.InsuranceRecommendations.clone()
	c.InsuranceCompanies = s.InsuranceCompanies.clone()
	c.InsuranceCertificate = s.InsuranceCertificate.clone()
	return &c
}
