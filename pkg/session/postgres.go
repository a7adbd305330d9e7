package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sasya-arogya/engine/pkg/database"
	"github.com/sasya-arogya/engine/pkg/state"
)

// PostgresStore persists sessions as JSONB documents. The whole workflow
// state is one row; a turn is exactly one upsert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore builds a store over the shared database client.
func NewPostgresStore(client *database.Client) *PostgresStore {
	return &PostgresStore{db: client.DB()}
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*state.WorkflowState, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE session_id = $1`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var s state.WorkflowState
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *state.WorkflowState) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.SessionID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, state, ended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (session_id)
		DO UPDATE SET state = EXCLUDED.state, ended = EXCLUDED.ended, updated_at = now()`,
		s.SessionID, doc, s.SessionEnded, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`DELETE FROM sessions WHERE updated_at < $1 RETURNING session_id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids, fmt.Errorf("failed to scan expired session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
