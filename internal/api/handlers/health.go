package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthChecker is satisfied by database.PostgresDB and database.RedisClient.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	breaker func() string
	version string
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler creates the health handler. redis and breaker may be nil:
// Redis is optional and reported as "disabled" when absent.
func NewHealthHandler(db HealthChecker, redis HealthChecker, breaker func() string, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		breaker: breaker,
		version: version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "unhealthy: not configured"
		healthy = false
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "disabled"
	}

	if h.breaker != nil {
		state := h.breaker()
		services["ledger_breaker"] = state
		if state == "open" {
			healthy = false
		}
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
