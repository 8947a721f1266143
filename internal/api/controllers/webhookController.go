package controllers

import (
	"context"
	"log"
	"net/http"

	"driveline/dealer-crm-worker/internal/dto"
	"driveline/dealer-crm-worker/internal/services"

	"github.com/gin-gonic/gin"
)

// WebhookController handles inbound message webhook requests
type WebhookController struct {
	webhookSecret string
	replies       *services.InboundReplyService
}

// NewWebhookController creates a new WebhookController instance
func NewWebhookController(webhookSecret string, replies *services.InboundReplyService) *WebhookController {
	return &WebhookController{
		webhookSecret: webhookSecret,
		replies:       replies,
	}
}

// HandleLeadReply handles POST /webhooks/lead-reply
// Called by the messaging provider when a lead texts back
// @Summary Handle inbound lead reply webhook
// @Description Receives an inbound message, pauses the lead's cadence, and records response analytics
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token with webhook secret"
// @Param payload body dto.InboundReply true "Inbound reply payload"
// @Success 200 {object} map[string]string "Reply accepted"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 400 {object} dto.ErrorResponse "Bad request"
// @Router /webhooks/lead-reply [post]
func (c *WebhookController) HandleLeadReply(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	expectedAuth := "Bearer " + c.webhookSecret

	if authHeader != expectedAuth {
		log.Printf("[WebhookController] Unauthorized request: invalid Authorization header")
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "Unauthorized: invalid webhook secret",
		})
		return
	}

	var reply dto.InboundReply
	if err := ctx.ShouldBindJSON(&reply); err != nil {
		log.Printf("[WebhookController] Failed to parse reply payload: %v", err)
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid reply payload",
		})
		return
	}

	if reply.LeadID == "" || reply.Body == "" {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "lead_id and body are required",
		})
		return
	}

	log.Printf("[WebhookController] Reply received: lead_id=%s, length=%d", reply.LeadID, len(reply.Body))

	// Respond 200 immediately (non-blocking)
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "accepted",
		"lead_id": reply.LeadID,
	})

	// Process reply in background
	go func() {
		if err := c.replies.ProcessReply(context.Background(), &reply); err != nil {
			log.Printf("[WebhookController] Reply processing failed: lead_id=%s, error=%v", reply.LeadID, err)
		}
	}()
}
