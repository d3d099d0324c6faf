package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopstream/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status     component.HealthStatus `json:"status"`
	Service    string                 `json:"service"`
	Timestamp  string                 `json:"timestamp"`
	Components []component.Health     `json:"components"`
}

// Health reports the worst status of all components. Unhealthy maps to 503.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{
			Status:     component.StatusHealthy,
			Service:    serviceName,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Components: []component.Health{},
		}
		if checker != nil {
			resp.Components = checker(c.Request.Context())
		}
		for _, h := range resp.Components {
			switch h.Status {
			case component.StatusUnhealthy:
				resp.Status = component.StatusUnhealthy
			case component.StatusDegraded:
				if resp.Status != component.StatusUnhealthy {
					resp.Status = component.StatusDegraded
				}
			}
		}

		status := http.StatusOK
		if resp.Status == component.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
