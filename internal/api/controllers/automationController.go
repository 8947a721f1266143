package controllers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
	"driveline/dealer-crm-worker/internal/services"

	"github.com/gin-gonic/gin"
)

// automationControllerLog provides structured logging for automation controller
func automationControllerLog(level, msg string, fields map[string]interface{}) {
	fieldStr := ""
	for k, v := range fields {
		fieldStr += fmt.Sprintf(" %s=%v", k, v)
	}
	log.Printf("[AutomationController] [%s] %s%s", level, msg, fieldStr)
}

// AutomationController handles manual automation trigger requests
type AutomationController struct {
	webhookSecret string
	processor     *services.AutomationProcessor
}

// NewAutomationController creates a new AutomationController
func NewAutomationController(webhookSecret string, processor *services.AutomationProcessor) *AutomationController {
	return &AutomationController{
		webhookSecret: webhookSecret,
		processor:     processor,
	}
}

// HandleRunTrigger handles POST /api/v1/automation/run
// Runs one follow-up cycle synchronously and returns its summary. A cycle
// skipped because another run holds the lock still returns 200 with a zero
// summary.
// @Summary Trigger a follow-up automation cycle
// @Description Runs one automation cycle and returns the run summary
// @Tags Automation
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token with webhook secret"
// @Param payload body dto.TriggerRequest true "Trigger options"
// @Success 200 {object} dto.RunSummary "Cycle summary"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 400 {object} dto.ErrorResponse "Bad request"
// @Failure 500 {object} dto.ErrorResponse "Cycle failed"
// @Router /api/v1/automation/run [post]
func (c *AutomationController) HandleRunTrigger(ctx *gin.Context) {
	requestTime := time.Now()
	clientIP := ctx.ClientIP()

	automationControllerLog("INFO", "Trigger received: automation run", map[string]interface{}{
		"endpoint":    "/api/v1/automation/run",
		"client_ip":   clientIP,
		"received_at": requestTime.Format(time.RFC3339),
	})

	if !c.validateAuth(ctx) {
		return
	}

	var req dto.TriggerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		automationControllerLog("ERROR", "Failed to parse trigger payload", map[string]interface{}{
			"client_ip": clientIP,
			"error":     err.Error(),
		})
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid trigger payload"})
		return
	}

	source := req.Source
	switch source {
	case "":
		source = dto.RunSourceManual
		if req.Automated {
			source = dto.RunSourceScheduled
		}
	case dto.RunSourceScheduled, dto.RunSourceManual, dto.RunSourceCleanup:
	default:
		automationControllerLog("ERROR", "Rejected unknown run source", map[string]interface{}{
			"client_ip": clientIP,
			"source":    source,
		})
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid run source"})
		return
	}

	summary, err := c.processor.RunCycle(ctx.Request.Context(), source)
	if err != nil {
		automationControllerLog("ERROR", "Automation cycle failed", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	summary.Enhanced = req.Enhanced

	automationControllerLog("INFO", "Automation cycle finished", map[string]interface{}{
		"source":     source,
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"queue_size": summary.QueueSize,
	})

	ctx.JSON(http.StatusOK, summary)
}

func (c *AutomationController) validateAuth(ctx *gin.Context) bool {
	authHeader := ctx.GetHeader("Authorization")
	expectedAuth := "Bearer " + c.webhookSecret

	if authHeader != expectedAuth {
		// Don't log the actual auth header for security reasons
		hasAuth := authHeader != ""
		automationControllerLog("WARN", "Authentication failed", map[string]interface{}{
			"has_auth_header": hasAuth,
			"client_ip":       ctx.ClientIP(),
			"path":            ctx.Request.URL.Path,
		})
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return false
	}
	return true
}
