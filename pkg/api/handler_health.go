package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sasya-arogya/engine/pkg/database"
	"github.com/sasya-arogya/engine/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// health handles GET /health. Only the engine's own components are
// checked; external services (classifier, prescription engine,
// insurance, Ollama) are excluded so an upstream outage does not get
// this process restarted.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := healthStatusHealthy
	checks := gin.H{}

	if s.db != nil {
		dbHealth, err := database.Health(ctx, s.db.DB())
		checks["database"] = dbHealth
		if err != nil {
			status = healthStatusUnhealthy
		}
	} else {
		checks["store"] = gin.H{"status": healthStatusHealthy, "backend": "memory"}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{"status": status, "version": version.Full(), "checks": checks})
}
