package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine Engine
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine Engine) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "graphrag",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. It probes the graph store through a
// cheap stats query; a timeout marks the store unhealthy.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	allHealthy := true

	if h.engine != nil {
		started := time.Now()
		_, err := h.engine.Stats(ctx, "")
		duration := time.Since(started)

		if err != nil || ctx.Err() != nil {
			checks["database"] = gin.H{
				"status":   "unhealthy",
				"duration": duration.String(),
			}
			allHealthy = false
		} else {
			checks["database"] = gin.H{
				"status":   "healthy",
				"duration": duration.String(),
			}
		}
	}

	status := http.StatusOK
	state := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   "graphrag",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
