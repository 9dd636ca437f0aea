package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
)

// Handler manages health check endpoints.
type Handler struct {
	store *registry.Store
}

// NewHandler creates a new health check handler backed by the lobby store.
func NewHandler(store *registry.Store) *Handler {
	return &Handler{store: store}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Stats     map[string]int    `json:"stats,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// All state lives in memory, so readiness only verifies the registry is
// wired and reports current lobby occupancy alongside it.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	stats := make(map[string]int)
	allHealthy := true

	if h.store == nil {
		checks["registry"] = "unhealthy"
		allHealthy = false
	} else {
		checks["registry"] = "healthy"
		stats["connections"] = h.store.Connections.Len()
		stats["users"] = h.store.Users.Len()
		stats["rooms"] = h.store.Rooms.Len()
		stats["games"] = h.store.Games.Len()
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Stats:     stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}
