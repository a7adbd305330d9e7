package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sasya-arogya/engine/pkg/session"
)

// getSession handles GET /sasya/session/:id. Bulk fields (image,
// overlay) are excluded from the state's JSON form.
func (s *Server) getSession(c *gin.Context) {
	state, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// endSession handles POST /sasya/session/:id/end.
func (s *Server) endSession(c *gin.Context) {
	id := c.Param("id")
	err := s.sessions.End(c.Request.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "session_ended": true})
}
