package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sasya-arogya/engine/pkg/database"
	"github.com/sasya-arogya/engine/pkg/state"
)

// setupPostgresStore starts a throwaway PostgreSQL container and returns
// a store backed by it, with migrations applied.
func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		// No container runtime on this machine; the memory-store tests
		// still cover the session layer.
		t.Skipf("skipping: could not start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host:         host,
		Port:         port.Int(),
		User:         "test",
		Password:     "test",
		Database:     "test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewPostgresStore(client)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	s := state.New("pg-session")
	s.UserMessage = "my wheat has rust"
	s.UserImage = "image-bytes"
	s.DiseaseName = "wheat_rust"
	s.Confidence = 0.87
	s.AddMessage(state.RoleUser, s.UserMessage)
	s.AddMessage(state.RoleAssistant, "Looks like wheat rust.")
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx, "pg-session")
	require.NoError(t, err)
	assert.Equal(t, "wheat_rust", loaded.DiseaseName)
	assert.InDelta(t, 0.87, loaded.Confidence, 1e-9)
	assert.Len(t, loaded.Messages, 2)
	// Bulk image data never round-trips through persistence.
	assert.Empty(t, loaded.UserImage)

	// Upsert on the same id.
	s.DiseaseName = "wheat_leaf_rust"
	require.NoError(t, store.Save(ctx, s))
	loaded, err = store.Load(ctx, "pg-session")
	require.NoError(t, err)
	assert.Equal(t, "wheat_leaf_rust", loaded.DiseaseName)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreDeleteExpired(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	old := state.New("old-session")
	require.NoError(t, store.Save(ctx, old))
	fresh := state.New("fresh-session")
	require.NoError(t, store.Save(ctx, fresh))

	// Backdate one session past the cutoff.
	_, err := store.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = now() - interval '2 days' WHERE session_id = $1`,
		"old-session")
	require.NoError(t, err)

	ids, err := store.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old-session"}, ids)

	_, err = store.Load(ctx, "old-session")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(ctx, "fresh-session")
	assert.NoError(t, err)
}
