// Package api exposes the workflow engine over HTTP: a streaming chat
// endpoint, a buffered chat endpoint, and session inspection.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sasya-arogya/engine/pkg/database"
	"github.com/sasya-arogya/engine/pkg/engine"
	"github.com/sasya-arogya/engine/pkg/session"
	"github.com/sasya-arogya/engine/pkg/stream"
)

// Server wires the HTTP handlers to the engine and session manager.
// db is optional; with a memory-backed session store it stays nil.
type Server struct {
	engine   *engine.Engine
	sessions *session.Manager
	tracker  *stream.Tracker
	db       *database.Client
	logger   *slog.Logger
}

// NewServer builds the server.
func NewServer(eng *engine.Engine, sessions *session.Manager, tracker *stream.Tracker, db *database.Client) *Server {
	return &Server{
		engine:   eng,
		sessions: sessions,
		tracker:  tracker,
		db:       db,
		logger:   slog.With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	chat := r.Group("/sasya")
	{
		chat.POST("/chat-stream", s.chatStream)
		chat.POST("/chat", s.chat)
		chat.GET("/session/:id", s.getSession)
		chat.POST("/session/:id/end", s.endSession)
	}

	return r
}
