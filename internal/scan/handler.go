package scan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/httpkit"
)

type runRequest struct {
	Categories []string `json:"categories"`
}

// handleRun handles POST /api/v1/scan/run. An empty body scans every domain.
func (m *Module) handleRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
			return
		}
	}

	categories := make([]domain.Category, 0, len(req.Categories))
	for _, raw := range req.Categories {
		category := domain.Category(raw)
		if !category.Valid() {
			httpkit.Error(c, http.StatusBadRequest, "unknown category: "+raw, nil)
			return
		}
		categories = append(categories, category)
	}

	report, err := m.Service.Run(c.Request.Context(), categories)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}
