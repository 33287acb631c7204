package stats

import (
	"github.com/gin-gonic/gin"

	"opspulse_backend/platform/httpkit"
)

// handleCounts handles GET /api/v1/stats/counts
func (m *Module) handleCounts(c *gin.Context) {
	counts, err := m.Service.Counts(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, counts)
}

// handleHealth handles GET /api/v1/stats/health
func (m *Module) handleHealth(c *gin.Context) {
	scores, err := m.Service.HealthScores(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, scores)
}
