package stream

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/sasya-arogya/engine/pkg/state"
)

// responseHashWindow is the size of the rolling buffer of recently
// emitted assistant_response hashes.
const responseHashWindow = 3

// Tracker holds the per-session duplicate-suppression state. It lives
// for the process lifetime; Forget drops a session's buffers when the
// session ends or expires.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*dedupState
}

type dedupState struct {
	overlayHashes  map[string]bool
	responseHashes []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*dedupState)}
}

func (t *Tracker) session(id string) *dedupState {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.sessions[id]
	if !ok {
		d = &dedupState{overlayHashes: make(map[string]bool)}
		t.sessions[id] = d
	}
	return d
}

// Forget drops a session's dedup buffers.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Turn streams one workflow turn. The engine calls Process after every
// node; Turn diffs against the previous flat snapshot and emits events
// through the sink in order.
type Turn struct {
	tracker   *Tracker
	sessionID string
	prev      map[string]any
	emit      func(Event)
}

// NewTurn starts a turn stream. initial is the state as loaded, before
// any node ran; its snapshot seeds the delta baseline so unchanged
// persisted fields are not re-streamed.
func NewTurn(tracker *Tracker, initial *state.WorkflowState, emit func(Event)) *Turn {
	return &Turn{
		tracker:   tracker,
		sessionID: initial.SessionID,
		prev:      initial.Flatten(),
		emit:      emit,
	}
}

// Process handles one post-node state snapshot.
func (t *Turn) Process(s *state.WorkflowState) {
	flat := s.Flatten()

	t.emitOverlay(s, flat)
	t.emitResponse(s, flat)
	t.emitStateUpdate(s, flat)

	t.prev = flat
}

func (t *Turn) emitOverlay(s *state.WorkflowState, flat map[string]any) {
	v, changed := rawChanged(t.prev, flat, "attention_overlay")
	if !changed {
		return
	}
	overlay, _ := v.(string)
	if overlay == "" {
		return
	}

	sample := overlay
	if len(sample) > 100 {
		sample = sample[:100]
	}
	hash := hashString(sample + t.sessionID + s.CurrentNode)

	dedup := t.tracker.session(t.sessionID)
	if dedup.overlayHashes[hash] {
		return
	}
	dedup.overlayHashes[hash] = true

	t.emit(Event{
		Type:      EventAttentionOverlay,
		SessionID: t.sessionID,
		Data: map[string]any{
			"attention_overlay": overlay,
			"disease_name":      s.DiseaseName,
			"confidence":        s.Confidence,
			"source_node":       s.CurrentNode,
		},
	})
}

func (t *Turn) emitResponse(s *state.WorkflowState, flat map[string]any) {
	v, changed := rawChanged(t.prev, flat, "assistant_response")
	if !changed {
		return
	}
	response, _ := v.(string)
	if response == "" {
		return
	}

	dedup := t.tracker.session(t.sessionID)
	hash := hashString(response)
	for _, h := range dedup.responseHashes {
		if h == hash {
			return
		}
	}
	if !s.StreamImmediately {
		return
	}
	if s.ResponseStatus == state.ResponseStatusIntermediate {
		return
	}

	dedup.responseHashes = append(dedup.responseHashes, hash)
	if len(dedup.responseHashes) > responseHashWindow {
		dedup.responseHashes = dedup.responseHashes[len(dedup.responseHashes)-responseHashWindow:]
	}

	t.emit(Event{
		Type:      EventAssistantResponse,
		SessionID: t.sessionID,
		Data:      map[string]any{"assistant_response": response},
	})
}

func (t *Turn) emitStateUpdate(s *state.WorkflowState, flat map[string]any) {
	delta := Delta(t.prev, flat)

	if !s.StreamInStateUpdate && s.ResponseStatus != state.ResponseStatusStateOnly {
		delete(delta, "assistant_response")
	}
	if cr, ok := delta["classification_results"].(*state.ClassificationResult); ok {
		delta["classification_results"] = pruneClassification(cr)
	}

	if len(delta) == 0 {
		return
	}
	t.emit(Event{
		Type:      EventStateUpdate,
		SessionID: t.sessionID,
		Data:      delta,
	})
}

// pruneClassification strips the verbose sub-fields that have no place
// in an incremental update.
func pruneClassification(cr *state.ClassificationResult) *state.ClassificationResult {
	pruned := *cr
	pruned.RawPredictions = nil
	pruned.PlantContext = nil
	pruned.AttentionOverlay = ""
	return &pruned
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
