package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sasya-arogya/engine/pkg/config"
	"github.com/sasya-arogya/engine/pkg/state"
	"github.com/sasya-arogya/engine/pkg/stream"
)

// duplicateWindow is how many recent user messages a new message is
// checked against before being appended to the log.
const duplicateWindow = 3

// TurnRequest carries the inputs of one chat turn.
type TurnRequest struct {
	SessionID string
	Message   string
	Image     string
	Context   map[string]string
}

// Manager prepares state for turns and persists the outcome. Turns on
// the same session are serialized with a per-session lock; state is
// written exactly once per turn, by CompleteTurn.
type Manager struct {
	store   Store
	tracker *stream.Tracker
	ttl     time.Duration
	cleanup time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager builds a manager over the given store.
func NewManager(store Store, tracker *stream.Tracker, cfg config.SessionConfig) *Manager {
	return &Manager{
		store:   store,
		tracker: tracker,
		ttl:     cfg.TTL,
		cleanup: cfg.CleanupInterval,
		logger:  slog.With("component", "session"),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock serializes turns on one session. The returned func releases it.
func (m *Manager) Lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[sessionID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// BeginTurn loads or creates the session state and primes it with the
// turn's inputs. An ended session starts over as a new conversation
// under the same id.
func (m *Manager) BeginTurn(ctx context.Context, req TurnRequest) (*state.WorkflowState, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	s, err := m.store.Load(ctx, sessionID)
	switch {
	case err == ErrNotFound:
		s = state.New(sessionID)
		m.logger.Info("new session", "session_id", sessionID)
	case err != nil:
		return nil, err
	case s.SessionEnded:
		m.logger.Info("session was ended, starting fresh", "session_id", sessionID)
		m.tracker.Forget(sessionID)
		s = state.New(sessionID)
	default:
		s.Messages = DeduplicateMessages(s.Messages)
	}

	// Streaming metadata and per-turn flags belong to the previous turn.
	s.AssistantResponse = ""
	s.ResponseStatus = ""
	s.StreamImmediately = false
	s.StreamInStateUpdate = false
	s.IsComplete = false
	s.RequiresUserInput = false
	s.NextAction = ""

	s.UserMessage = req.Message
	s.UserImage = req.Image
	m.mergeContext(s, req.Context)

	if !m.isDuplicateMessage(s, req.Message) {
		s.AddMessage(state.RoleUser, req.Message)
	}

	return s, nil
}

// CompleteTurn is the turn's single persistence point.
func (m *Manager) CompleteTurn(ctx context.Context, s *state.WorkflowState) error {
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	if s.SessionEnded {
		m.tracker.Forget(s.SessionID)
	}
	return nil
}

// Get returns the stored state for inspection endpoints.
func (m *Manager) Get(ctx context.Context, sessionID string) (*state.WorkflowState, error) {
	s, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Messages = DeduplicateMessages(s.Messages)
	return s, nil
}

// End marks a session finished outside a workflow turn.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	unlock := m.Lock(sessionID)
	defer unlock()

	s, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	s.SessionEnded = true
	s.UserImage = ""
	s.AttentionOverlay = ""
	s.Touch()
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	m.tracker.Forget(sessionID)
	return nil
}

// StartCleanup expires idle sessions until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	if m.ttl <= 0 || m.cleanup <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cleanup)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expire(ctx)
			}
		}
	}()
}

func (m *Manager) expire(ctx context.Context) {
	ids, err := m.store.DeleteExpired(ctx, time.Now().UTC().Add(-m.ttl))
	if err != nil {
		m.logger.Error("session cleanup failed", "error", err)
		return
	}
	for _, id := range ids {
		m.tracker.Forget(id)
		m.dropLock(id)
	}
	if len(ids) > 0 {
		m.logger.Info("expired idle sessions", "count", len(ids))
	}
}

func (m *Manager) dropLock(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, sessionID)
}

// mergeContext folds API-supplied context into the state. Explicit API
// values win over anything extracted earlier.
func (m *Manager) mergeContext(s *state.WorkflowState, apiContext map[string]string) {
	if s.UserContext == nil {
		s.UserContext = map[string]string{}
	}
	for k, v := range apiContext {
		if v == "" {
			continue
		}
		s.UserContext[k] = v
	}
}

func (m *Manager) isDuplicateMessage(s *state.WorkflowState, message string) bool {
	for _, prev := range s.LastUserMessages(duplicateWindow) {
		if prev == message {
			return true
		}
	}
	return false
}
