package controllers

import (
	"log"
	"net/http"

	"driveline/dealer-crm-worker/internal/dto"
	"driveline/dealer-crm-worker/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthController exposes the automation health read model
type HealthController struct {
	cleanup *services.CleanupService
}

// NewHealthController creates a new HealthController instance
func NewHealthController(cleanup *services.CleanupService) *HealthController {
	return &HealthController{cleanup: cleanup}
}

// HandleAutomationHealth handles GET /api/v1/automation/health
// @Summary Get automation health
// @Description Returns the computed automation health score with operator recommendations
// @Tags Automation
// @Produce json
// @Success 200 {object} dto.HealthReport "Health report"
// @Failure 500 {object} dto.ErrorResponse "Health check failed"
// @Router /api/v1/automation/health [get]
func (c *HealthController) HandleAutomationHealth(ctx *gin.Context) {
	report, err := c.cleanup.HealthSnapshot(ctx.Request.Context())
	if err != nil {
		log.Printf("[HealthController] Health snapshot failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, report)
}
